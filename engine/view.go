package engine

import (
	"time"

	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
)

// View is the read-only projection handed to front-ends. Quotes must not be
// modified by the receiver.
type View struct {
	SessionID     string
	Status        quotestate.Status
	Key           string
	Request       *swaps.QuoteRequest
	Quotes        []swaps.Quote
	SelectedIndex int // -1 when nothing is selected
	Selected      *swaps.Quote
	FetchedAt     time.Time

	// Quoting is true while a fan-out is in flight. Previous quotes stay in
	// Quotes during a refresh.
	Quoting     bool
	Transacting bool

	// Error is the user-facing message of an error state.
	Error string

	Warning            *slippage.Warning
	AutoRefreshStopped bool
}

func (e *Engine) buildView() View {
	s := e.state
	v := View{
		SessionID:          e.id,
		Status:             s.Status,
		Key:                e.key,
		Request:            e.req,
		SelectedIndex:      -1,
		Quoting:            s.Status == quotestate.Fetching && e.token != 0,
		Transacting:        e.transacting,
		Warning:            e.warning,
		AutoRefreshStopped: e.autoStopped,
	}

	switch s.Status {
	case quotestate.Success:
		v.Quotes = s.Quotes
		v.SelectedIndex = s.SelectedIndex
		v.FetchedAt = e.fetchedAt
	case quotestate.Fetching:
		if r := e.retained; r != nil && r.key == s.Key {
			v.Quotes = r.quotes
			v.SelectedIndex = r.index
			v.FetchedAt = r.fetchedAt
		}
	case quotestate.Error:
		v.Error = e.lastErr
	}

	if v.SelectedIndex >= 0 && v.SelectedIndex < len(v.Quotes) {
		q := v.Quotes[v.SelectedIndex]
		v.Selected = &q
	} else {
		v.SelectedIndex = -1
	}
	return v
}

// View returns the latest snapshot. Safe from any goroutine.
func (e *Engine) View() View {
	if v := e.view.Load(); v != nil {
		return *v
	}
	return View{SessionID: e.id, SelectedIndex: -1}
}

// Subscribe returns a channel receiving snapshots after every change,
// starting with the current one. Slow readers only see the latest snapshot.
// The channel is closed by the returned cancel func or when Run exits.
func (e *Engine) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	ch <- e.View()

	e.subMu.Lock()
	if e.closed {
		e.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) publish() {
	v := e.buildView()
	e.view.Store(&v)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}
