package quotestate

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/quoteflow/swaps"
)

type trade int64

func (t trade) RealizedOutput() *big.Int { return big.NewInt(int64(t)) }
func (t trade) Assemble(context.Context) (*swaps.Transaction, error) {
	return &swaps.Transaction{}, nil
}

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func quotes(n int) []swaps.Quote {
	out := make([]swaps.Quote, n)
	for i := range out {
		out[i] = swaps.Quote{Provider: "p", Trade: trade(100 - i)}
	}
	return out
}

func success(key string, n int) State {
	return State{Status: Success, Key: key, Quotes: quotes(n), FetchedAt: t0}
}

func TestReduce(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		state  State
		action Action
		want   State
	}{
		{
			name:   "start from idle",
			state:  State{},
			action: FetchStart{Key: "k1", At: t0},
			want:   State{Status: Fetching, Key: "k1", StartedAt: t0},
		},
		{
			name:   "start from success replaces",
			state:  success("k1", 2),
			action: FetchStart{Key: "k2", At: t0},
			want:   State{Status: Fetching, Key: "k2", StartedAt: t0},
		},
		{
			name:   "success matching key",
			state:  State{Status: Fetching, Key: "k1", StartedAt: t0},
			action: FetchSuccess{Key: "k1", Quotes: quotes(3), At: t0},
			want:   State{Status: Success, Key: "k1", Quotes: quotes(3), FetchedAt: t0},
		},
		{
			name:   "stale success ignored",
			state:  State{Status: Fetching, Key: "k2", StartedAt: t0},
			action: FetchSuccess{Key: "k1", Quotes: quotes(3), At: t0},
			want:   State{Status: Fetching, Key: "k2", StartedAt: t0},
		},
		{
			name:   "success when not fetching ignored",
			state:  success("k1", 1),
			action: FetchSuccess{Key: "k1", Quotes: quotes(3), At: t0.Add(time.Second)},
			want:   success("k1", 1),
		},
		{
			name:   "empty success is an error",
			state:  State{Status: Fetching, Key: "k1"},
			action: FetchSuccess{Key: "k1", At: t0},
			want:   State{Status: Error, Key: "k1", Message: swaps.ErrNoQuoteAvailable.Error()},
		},
		{
			name:   "error matching key",
			state:  State{Status: Fetching, Key: "k1"},
			action: FetchError{Key: "k1", Err: boom},
			want:   State{Status: Error, Key: "k1", Message: "boom"},
		},
		{
			name:   "stale error ignored",
			state:  State{Status: Fetching, Key: "k2"},
			action: FetchError{Key: "k1", Err: boom},
			want:   State{Status: Fetching, Key: "k2"},
		},
		{
			name:   "select in bounds",
			state:  success("k1", 3),
			action: SelectQuote{Index: 2},
			want:   State{Status: Success, Key: "k1", Quotes: quotes(3), FetchedAt: t0, SelectedIndex: 2},
		},
		{
			name:   "select out of bounds",
			state:  success("k1", 3),
			action: SelectQuote{Index: 3},
			want:   success("k1", 3),
		},
		{
			name:   "select negative",
			state:  success("k1", 3),
			action: SelectQuote{Index: -1},
			want:   success("k1", 3),
		},
		{
			name:   "select while fetching",
			state:  State{Status: Fetching, Key: "k1"},
			action: SelectQuote{Index: 0},
			want:   State{Status: Fetching, Key: "k1"},
		},
		{
			name:   "clear",
			state:  success("k1", 3),
			action: Clear{},
			want:   State{},
		},
		{
			name:   "invalidate success keeps quotes",
			state:  State{Status: Success, Key: "k1", Quotes: quotes(2), FetchedAt: t0, SelectedIndex: 1},
			action: Invalidate{},
			want:   State{Status: Success, Key: "k1", Quotes: quotes(2), SelectedIndex: 1},
		},
		{
			name:   "invalidate error goes idle",
			state:  State{Status: Error, Key: "k1", Message: "x"},
			action: Invalidate{},
			want:   State{},
		},
		{
			name:   "invalidate fetching goes idle",
			state:  State{Status: Fetching, Key: "k1"},
			action: Invalidate{},
			want:   State{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(tt.state, tt.action))
		})
	}
}

func TestReduceDoesNotAliasQuotes(t *testing.T) {
	in := quotes(2)
	s := Reduce(State{Status: Fetching, Key: "k"}, FetchSuccess{Key: "k", Quotes: in, At: t0})
	in[0] = swaps.Quote{Provider: "mutated"}
	assert.Equal(t, "p", s.Quotes[0].Provider)
}

func TestSelectedAndStale(t *testing.T) {
	s := success("k1", 3)
	s = Reduce(s, SelectQuote{Index: 1})
	q, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(99), q.RealizedOutput().Int64())

	assert.False(t, s.Stale(t0.Add(10*time.Second), 30*time.Second))
	assert.True(t, s.Stale(t0.Add(30*time.Second), 30*time.Second))
	assert.True(t, Reduce(s, Invalidate{}).Stale(t0, 30*time.Second))

	_, ok = State{Status: Fetching}.Selected()
	assert.False(t, ok)
}
