package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/quoteflow/metrics"
	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
)

const waitFor = 2 * time.Second

type fakeTrade struct {
	out int64
}

func (t fakeTrade) RealizedOutput() *big.Int { return big.NewInt(t.out) }
func (t fakeTrade) Assemble(context.Context) (*swaps.Transaction, error) {
	return &swaps.Transaction{ChainID: 1, Value: big.NewInt(t.out)}, nil
}

func quotesOf(outs ...int64) []swaps.Quote {
	qs := make([]swaps.Quote, len(outs))
	for i, o := range outs {
		qs[i] = swaps.Quote{Provider: fmt.Sprintf("p%d", i), Trade: fakeTrade{out: o}}
	}
	return qs
}

type result struct {
	quotes []swaps.Quote
	err    error
}

type fetchCall struct {
	ctx   context.Context
	req   swaps.QuoteRequest
	reply chan result
}

func (c *fetchCall) respond(quotes []swaps.Quote, err error) {
	c.reply <- result{quotes: quotes, err: err}
}

// fakeFetcher hands every call to the test, which answers it explicitly.
type fakeFetcher struct {
	calls        chan *fetchCall
	ignoreCancel bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *fetchCall, 16)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req swaps.QuoteRequest) ([]swaps.Quote, error) {
	c := &fetchCall{ctx: ctx, req: req, reply: make(chan result, 1)}
	f.calls <- c
	if f.ignoreCancel {
		r := <-c.reply
		return r.quotes, r.err
	}
	select {
	case r := <-c.reply:
		return r.quotes, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("expected a fetch")
		return nil
	}
}

func (f *fakeFetcher) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch for %s", c.req.Amount)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []FetchRecord
	seen    chan FetchRecord
}

func newRecorder() *recordingRecorder {
	return &recordingRecorder{seen: make(chan FetchRecord, 16)}
}

func (r *recordingRecorder) RecordFetch(_ context.Context, rec FetchRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	r.seen <- rec
	return nil
}

var (
	usdc = swaps.Currency{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
	weth = swaps.Currency{ChainID: 1, Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Symbol: "WETH", Decimals: 18}
)

func request(amount int64) *swaps.QuoteRequest {
	return &swaps.QuoteRequest{
		Amount:   swaps.Amount{Currency: usdc, Value: big.NewInt(amount)},
		To:       weth,
		Slippage: decimal.RequireFromString("0.005"),
		Receiver: "0x000000000000000000000000000000000000dEaD",
	}
}

func start(t *testing.T, f Fetcher, opts ...Option) *Engine {
	t.Helper()
	e := New(f, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e
}

func settle(t *testing.T, e *Engine) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, e.Sync(ctx))
	return e.View()
}

func waitView(t *testing.T, e *Engine, cond func(View) bool) View {
	t.Helper()
	require.Eventually(t, func() bool { return cond(e.View()) }, waitFor, 5*time.Millisecond)
	return e.View()
}

func isSuccess(v View) bool { return v.Status == quotestate.Success }

func outputs(v View) []int64 {
	out := make([]int64, len(v.Quotes))
	for i, q := range v.Quotes {
		out[i] = q.RealizedOutput().Int64()
	}
	return out
}

func TestOneFetchPerKey(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	call := f.next(t)
	assert.EqualValues(t, 1000, call.req.Amount.Value.Int64())

	e.SetRequest(request(1000))
	e.SetRequest(request(1000))
	v := settle(t, e)
	assert.True(t, v.Quoting)
	f.none(t)

	call.respond(quotesOf(30, 20), nil)
	v = waitView(t, e, isSuccess)
	assert.Equal(t, []int64{30, 20}, outputs(v))
	assert.Equal(t, 0, v.SelectedIndex)
	assert.False(t, v.Quoting)

	e.SetRequest(request(1000))
	settle(t, e)
	f.none(t)
}

func TestStaleResultDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.ignoreCancel = true
	rec := newRecorder()
	e := start(t, f, WithRecorder(rec))

	e.SetRequest(request(1000))
	first := f.next(t)
	e.SetRequest(request(2000))
	second := f.next(t)

	second.respond(quotesOf(5), nil)
	<-rec.seen
	v := waitView(t, e, isSuccess)
	keyB := v.Key

	first.respond(quotesOf(9, 8), nil)
	<-rec.seen
	v = settle(t, e)
	assert.Equal(t, keyB, v.Key)
	assert.Equal(t, []int64{5}, outputs(v))
}

func TestSupersededFetchIsCancelled(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	first := f.next(t)
	e.SetRequest(request(2000))
	f.next(t)

	select {
	case <-first.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("first fetch was not cancelled")
	}
}

func TestSelectionPreservedOnRefresh(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9, 8), nil)
	waitView(t, e, isSuccess)

	e.SelectQuote(2)
	v := settle(t, e)
	require.Equal(t, 2, v.SelectedIndex)
	require.NotNil(t, v.Selected)
	assert.EqualValues(t, 8, v.Selected.RealizedOutput().Int64())

	e.Refresh()
	call := f.next(t)
	v = settle(t, e)
	assert.True(t, v.Quoting)
	assert.Equal(t, []int64{10, 9, 8}, outputs(v), "previous quotes stay visible")
	assert.Equal(t, 2, v.SelectedIndex)

	call.respond(quotesOf(11, 10, 9, 8), nil)
	v = waitView(t, e, func(v View) bool { return isSuccess(v) && len(v.Quotes) == 4 })
	assert.Equal(t, 2, v.SelectedIndex)

	// Out of range after refresh falls back to the best quote.
	e.Refresh()
	f.next(t).respond(quotesOf(12, 11), nil)
	v = waitView(t, e, func(v View) bool { return isSuccess(v) && len(v.Quotes) == 2 })
	assert.Equal(t, 0, v.SelectedIndex)
}

func TestSelectionDuringRefreshCarriesOver(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9, 8), nil)
	waitView(t, e, isSuccess)

	e.Refresh()
	call := f.next(t)
	e.SelectQuote(1)
	v := settle(t, e)
	assert.Equal(t, 1, v.SelectedIndex)

	call.respond(quotesOf(10, 9, 8), nil)
	v = waitView(t, e, func(v View) bool { return isSuccess(v) && !v.Quoting })
	assert.Equal(t, 1, v.SelectedIndex)
}

func TestSelectionResetsOnNewRequest(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9, 8), nil)
	waitView(t, e, isSuccess)
	e.SelectQuote(1)
	settle(t, e)

	e.SetRequest(request(2000))
	call := f.next(t)
	v := settle(t, e)
	assert.Empty(t, v.Quotes, "a new request does not show old quotes")

	call.respond(quotesOf(20, 19, 18), nil)
	v = waitView(t, e, isSuccess)
	assert.Equal(t, 0, v.SelectedIndex)
}

func TestSelectOutOfRangeIgnored(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9), nil)
	waitView(t, e, isSuccess)

	e.SelectQuote(5)
	e.SelectQuote(-1)
	v := settle(t, e)
	assert.Equal(t, 0, v.SelectedIndex)
}

func TestTotalFailureIsErrorState(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(nil, fmt.Errorf("%w: %w", swaps.ErrNoQuoteAvailable, errors.New("provider down")))
	v := waitView(t, e, func(v View) bool { return v.Status == quotestate.Error })
	assert.Empty(t, v.Quotes)
	assert.Nil(t, v.Selected)
	assert.Equal(t, -1, v.SelectedIndex)
	assert.Equal(t, swaps.ErrNoQuoteAvailable.Error(), v.Error)

	// Sticky for the same request.
	e.SetRequest(request(1000))
	settle(t, e)
	f.none(t)

	e.Refresh()
	f.next(t).respond(quotesOf(7), nil)
	v = waitView(t, e, isSuccess)
	assert.Empty(t, v.Error)
}

func TestEmptyResultIsErrorState(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(nil, nil)
	v := waitView(t, e, func(v View) bool { return v.Status == quotestate.Error })
	assert.Equal(t, swaps.ErrNoQuoteAvailable.Error(), v.Error)
}

func TestTransactingSuspendsAndRequotesFresh(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9), nil)
	waitView(t, e, isSuccess)
	e.SelectQuote(1)

	e.SetTransacting(true)
	e.Refresh()
	e.SetRequest(request(1000))
	v := settle(t, e)
	f.none(t)
	assert.True(t, v.Transacting)
	assert.Equal(t, []int64{10, 9}, outputs(v))
	assert.Equal(t, 1, v.SelectedIndex)

	e.SetTransacting(false)
	call := f.next(t)
	v = settle(t, e)
	assert.False(t, v.Transacting)
	assert.True(t, v.Quoting)
	assert.Empty(t, v.Quotes, "cache is discarded after a transaction")

	call.respond(quotesOf(10, 9), nil)
	v = waitView(t, e, isSuccess)
	assert.Equal(t, 0, v.SelectedIndex)
}

func TestTransactingCancelsInFlight(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	call := f.next(t)
	e.SetTransacting(true)

	select {
	case <-call.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("fetch was not cancelled")
	}
	v := settle(t, e)
	assert.False(t, v.Quoting)
}

func TestAbortCancelsAndHolds(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	call := f.next(t)
	e.Abort()

	select {
	case <-call.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("fetch was not cancelled")
	}
	v := settle(t, e)
	assert.Equal(t, quotestate.Idle, v.Status)
	assert.False(t, v.Quoting)
	f.none(t)

	e.Refresh()
	f.next(t).respond(quotesOf(3), nil)
	waitView(t, e, isSuccess)
}

func TestAbortWhenIdleIsNoop(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.Abort()
	e.SetRequest(request(1000))
	f.next(t)
}

func TestRefreshWhileFetchingIsNoop(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t)
	e.Refresh()
	settle(t, e)
	f.none(t)
}

func TestClear(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10), nil)
	waitView(t, e, isSuccess)

	e.Clear()
	v := settle(t, e)
	assert.Equal(t, quotestate.Idle, v.Status)
	assert.Nil(t, v.Request)
	assert.Empty(t, v.Quotes)
	f.none(t)
}

func TestInvalidRequestClears(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10), nil)
	waitView(t, e, isSuccess)

	e.SetRequest(request(0))
	v := settle(t, e)
	assert.Equal(t, quotestate.Idle, v.Status)
	f.none(t)

	e.SetRequest(nil)
	v = settle(t, e)
	assert.Equal(t, quotestate.Idle, v.Status)
}

type currencyMap map[string]swaps.Currency

func (m currencyMap) GetCurrency(chainID uint64, address string) (swaps.Currency, bool) {
	c, ok := m[fmt.Sprintf("%d:%s", chainID, swaps.NormalizeAddress(address))]
	return c, ok
}

func TestCurrencyLookup(t *testing.T) {
	f := newFakeFetcher()
	known := currencyMap{
		fmt.Sprintf("1:%s", swaps.NormalizeAddress(usdc.Address)): usdc,
	}
	e := start(t, f, WithCurrencies(known))

	e.SetRequest(request(1000))
	v := settle(t, e)
	assert.Equal(t, quotestate.Idle, v.Status, "unknown destination is invalid input")
	f.none(t)

	known[fmt.Sprintf("1:%s", swaps.NormalizeAddress(weth.Address))] = weth
	e.SetRequest(request(1000))
	call := f.next(t)
	assert.Equal(t, swaps.NormalizeAddress(weth.Address), call.req.To.Address)
}

func TestAutoRefreshCeiling(t *testing.T) {
	var offset atomic.Int64
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return base.Add(time.Duration(offset.Load())) }

	m := metrics.Quotes()
	trips := testutil.ToFloat64(m.CeilingTripCounter())

	f := newFakeFetcher()
	e := start(t, f,
		WithClock(clock),
		WithRefreshInterval(20*time.Millisecond),
		WithRefreshCeiling(time.Minute),
		WithMetrics(m),
	)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10), nil)

	// The timer refreshes while inside the window.
	call := f.next(t)
	v := settle(t, e)
	assert.True(t, v.Quoting)
	assert.Equal(t, []int64{10}, outputs(v))

	offset.Store(int64(2 * time.Minute))
	call.respond(quotesOf(11), nil)
	v = waitView(t, e, func(v View) bool { return v.AutoRefreshStopped })
	assert.Equal(t, quotestate.Success, v.Status)
	assert.Equal(t, []int64{11}, outputs(v))
	f.none(t)
	assert.Equal(t, trips+1, testutil.ToFloat64(m.CeilingTripCounter()))

	e.Refresh()
	f.next(t).respond(quotesOf(12), nil)
	waitView(t, e, func(v View) bool {
		return !v.AutoRefreshStopped && len(v.Quotes) == 1 && outputs(v)[0] == 12
	})
}

func TestSlippageWarning(t *testing.T) {
	f := newFakeFetcher()
	v := slippage.New(slippage.Config{})
	e := start(t, f, WithValidator(v))

	req := request(1000)
	req.MinOutput = big.NewInt(100)
	e.SetRequest(req)
	f.next(t).respond(quotesOf(100, 90), nil)
	view := waitView(t, e, isSuccess)
	assert.Nil(t, view.Warning)

	e.SelectQuote(1)
	view = settle(t, e)
	require.NotNil(t, view.Warning)
	assert.EqualValues(t, 1000, view.Warning.ShortfallBps)
	require.NotNil(t, view.Warning.SuggestedInput)
	assert.Equal(t, "1146", view.Warning.SuggestedInput.String(), "1112 padded by the 3% ceiling buffer")
}

func TestTransactionEndResetsBuffer(t *testing.T) {
	f := newFakeFetcher()
	v := slippage.New(slippage.Config{})
	e := start(t, f, WithValidator(v))

	req := request(1000)
	req.MinOutput = big.NewInt(100)
	e.SetRequest(req)
	f.next(t).respond(quotesOf(90), nil)
	view := waitView(t, e, isSuccess)
	require.NotNil(t, view.Warning)
	assert.Greater(t, v.BufferBps(), int64(slippage.DefaultBufferBps))

	e.SetTransacting(true)
	e.SetTransacting(false)
	settle(t, e)
	assert.EqualValues(t, slippage.DefaultBufferBps, v.BufferBps())
	f.next(t)
}

func TestRecorder(t *testing.T) {
	f := newFakeFetcher()
	rec := newRecorder()
	e := start(t, f, WithRecorder(rec), WithSessionID("s-1"))

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10), nil)

	r := <-rec.seen
	assert.Equal(t, "s-1", r.SessionID)
	assert.Equal(t, "success", r.Outcome)
	assert.False(t, r.Refresh)
	assert.NotEmpty(t, r.ID)
	assert.Len(t, r.Quotes, 1)

	waitView(t, e, isSuccess)
	e.Refresh()
	f.next(t).respond(nil, errors.New("boom"))
	r = <-rec.seen
	assert.Equal(t, "error", r.Outcome)
	assert.True(t, r.Refresh)
}

type instantFetcher struct{}

func (instantFetcher) Fetch(context.Context, swaps.QuoteRequest) ([]swaps.Quote, error) {
	return quotesOf(10), nil
}

func TestRecorderSuccessIsNeverCancelled(t *testing.T) {
	for i := 0; i < 200; i++ {
		rec := newRecorder()
		e := start(t, instantFetcher{}, WithRecorder(rec))
		e.SetRequest(request(1000))

		select {
		case r := <-rec.seen:
			require.Equal(t, "success", r.Outcome, "iteration %d", i)
		case <-time.After(waitFor):
			t.Fatalf("iteration %d: fetch not recorded", i)
		}
	}
}

func TestFetchOutcome(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, "success", fetchOutcome(live, nil))
	assert.Equal(t, "error", fetchOutcome(live, errors.New("boom")))
	assert.Equal(t, "cancelled", fetchOutcome(live, context.Canceled))
	assert.Equal(t, "cancelled", fetchOutcome(cancelled, nil))
}

func TestSubscribe(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	ch, unsubscribe := e.Subscribe()
	first := <-ch
	assert.Equal(t, quotestate.Idle, first.Status)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10), nil)
	waitView(t, e, isSuccess)

	require.Eventually(t, func() bool {
		select {
		case v := <-ch:
			return v.Status == quotestate.Success
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestAssemble(t *testing.T) {
	f := newFakeFetcher()
	e := start(t, f)

	_, _, err := e.Assemble(context.Background())
	assert.ErrorIs(t, err, ErrNoSelection)

	e.SetRequest(request(1000))
	f.next(t).respond(quotesOf(10, 9), nil)
	waitView(t, e, isSuccess)
	e.SelectQuote(1)
	settle(t, e)

	q, tx, err := e.Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p1", q.Provider)
	assert.EqualValues(t, 9, tx.Value.Int64())
}

func TestRunStopsCleanly(t *testing.T) {
	f := newFakeFetcher()
	e := New(f)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- e.Run(ctx) }()

	e.SetRequest(request(1000))
	call := f.next(t)

	assert.ErrorIs(t, e.Run(context.Background()), ErrAlreadyRunning)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	select {
	case <-call.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("fetch outlived the engine")
	}
	assert.ErrorIs(t, e.Sync(context.Background()), ErrStopped)
}

func TestSelectIndex(t *testing.T) {
	tests := []struct {
		name              string
		refresh, explicit bool
		previous, n, want int
	}{
		{"refresh keeps explicit pick", true, true, 2, 3, 2},
		{"refresh without pick", true, false, 2, 3, 0},
		{"new request", false, true, 2, 3, 0},
		{"out of range", true, true, 3, 3, 0},
		{"no previous", true, true, -1, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectIndex(tt.refresh, tt.explicit, tt.previous, tt.n))
		})
	}
}
