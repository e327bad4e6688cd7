// Package quotestate is the quote store: a state value and a pure reducer.
// All I/O happens in the caller.
package quotestate

import (
	"time"

	"github.com/RaghavSood/quoteflow/swaps"
)

// Status tags the active variant of State.
type Status uint8

const (
	Idle Status = iota
	Fetching
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is a tagged union. Fields outside the active variant are zero:
//
//	Idle:     -
//	Fetching: Key, StartedAt
//	Success:  Key, Quotes, FetchedAt, SelectedIndex (always in bounds)
//	Error:    Key, Message
type State struct {
	Status        Status
	Key           string
	StartedAt     time.Time
	Quotes        []swaps.Quote
	FetchedAt     time.Time
	SelectedIndex int
	Message       string
}

// Selected returns the selected quote of a Success state.
func (s State) Selected() (swaps.Quote, bool) {
	if s.Status != Success || s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Quotes) {
		return swaps.Quote{}, false
	}
	return s.Quotes[s.SelectedIndex], true
}

// Stale reports whether a Success state should be refetched: it was
// invalidated, or it is older than maxAge.
func (s State) Stale(now time.Time, maxAge time.Duration) bool {
	if s.Status != Success {
		return false
	}
	return s.FetchedAt.IsZero() || now.Sub(s.FetchedAt) >= maxAge
}

// Action is one of the reducer inputs below.
type Action interface {
	action()
}

// FetchStart begins a fetch for Key.
type FetchStart struct {
	Key string
	At  time.Time
}

// FetchSuccess completes the fetch for Key.
type FetchSuccess struct {
	Key    string
	Quotes []swaps.Quote
	At     time.Time
}

// FetchError fails the fetch for Key.
type FetchError struct {
	Key string
	Err error
}

// SelectQuote picks a quote of a Success state.
type SelectQuote struct {
	Index int
}

// Clear resets to Idle.
type Clear struct{}

// Invalidate marks a Success state stale while keeping its quotes.
type Invalidate struct{}

func (FetchStart) action()   {}
func (FetchSuccess) action() {}
func (FetchError) action()   {}
func (SelectQuote) action()  {}
func (Clear) action()        {}
func (Invalidate) action()   {}

// Reduce applies a to s. It is total and has no side effects; actions that
// do not apply to the current state return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FetchStart:
		return State{Status: Fetching, Key: a.Key, StartedAt: a.At}

	case FetchSuccess:
		if s.Status != Fetching || s.Key != a.Key {
			return s
		}
		if len(a.Quotes) == 0 {
			return State{Status: Error, Key: a.Key, Message: swaps.ErrNoQuoteAvailable.Error()}
		}
		quotes := append([]swaps.Quote(nil), a.Quotes...)
		return State{Status: Success, Key: a.Key, Quotes: quotes, FetchedAt: a.At, SelectedIndex: 0}

	case FetchError:
		if s.Status != Fetching || s.Key != a.Key {
			return s
		}
		msg := "unknown error"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		return State{Status: Error, Key: a.Key, Message: msg}

	case SelectQuote:
		if s.Status != Success || a.Index < 0 || a.Index >= len(s.Quotes) {
			return s
		}
		s.SelectedIndex = a.Index
		return s

	case Clear:
		return State{Status: Idle}

	case Invalidate:
		if s.Status != Success {
			return State{Status: Idle}
		}
		s.FetchedAt = time.Time{}
		return s
	}
	return s
}
