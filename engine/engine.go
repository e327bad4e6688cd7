// Package engine runs one quoting session. A single goroutine owns the quote
// state and applies user commands, fan-out results and refresh timer ticks in
// order. Readers observe immutable View snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RaghavSood/quoteflow/fingerprint"
	"github.com/RaghavSood/quoteflow/metrics"
	"github.com/RaghavSood/quoteflow/quotestate"
	"github.com/RaghavSood/quoteflow/slippage"
	"github.com/RaghavSood/quoteflow/swaps"
)

var (
	ErrNoSelection    = errors.New("no quote selected")
	ErrAlreadyRunning = errors.New("engine already running")
	ErrStopped        = errors.New("engine stopped")
)

// Fetcher fans a request out to providers. *swaps.Router implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req swaps.QuoteRequest) ([]swaps.Quote, error)
}

// CurrencyLookup resolves a currency by chain and address.
type CurrencyLookup interface {
	GetCurrency(chainID uint64, address string) (swaps.Currency, bool)
}

// FetchRecord describes one completed fan-out.
type FetchRecord struct {
	ID         string
	SessionID  string
	Key        string
	Request    swaps.QuoteRequest
	Refresh    bool
	Outcome    string // success, error or cancelled
	Quotes     []swaps.Quote
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists fetch history. It is called off the state goroutine.
type Recorder interface {
	RecordFetch(ctx context.Context, rec FetchRecord) error
}

const recordTimeout = 5 * time.Second

type retainedQuotes struct {
	key       string
	quotes    []swaps.Quote
	index     int
	fetchedAt time.Time
}

// Engine drives the quote state for one session.
type Engine struct {
	fetcher    Fetcher
	interval   time.Duration
	ceiling    time.Duration
	now        func() time.Time
	logger     *slog.Logger
	recorder   Recorder
	currencies CurrencyLookup
	validator  *slippage.Validator
	metrics    *metrics.QuoteMetrics
	id         string

	cmds    chan command
	done    chan struct{}
	running atomic.Bool

	view    atomic.Pointer[View]
	subMu   sync.Mutex
	subs    map[int]chan View
	nextSub int
	closed  bool

	// Owned by the Run goroutine.
	runCtx      context.Context
	state       quotestate.State
	req         *swaps.QuoteRequest
	key         string
	seq         uint64
	token       uint64 // active fetch, 0 when none
	cancel      context.CancelFunc
	explicit    bool
	transacting bool
	held        bool
	retained    *retainedQuotes
	fetchedAt   time.Time
	timer       *time.Timer
	timerGen    uint64
	cycleStart  time.Time
	autoStopped bool
	warning     *slippage.Warning
	lastErr     string
}

// New creates an engine. Call Run to start processing.
func New(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		interval: DefaultRefreshInterval,
		ceiling:  DefaultRefreshCeiling,
		now:      time.Now,
		logger:   slog.Default(),
		cmds:     make(chan command, 64),
		done:     make(chan struct{}),
		subs:     make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	e.logger = e.logger.With("session", e.id)
	e.state = quotestate.State{Status: quotestate.Idle}
	v := e.buildView()
	e.view.Store(&v)
	return e
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Run processes commands until ctx is cancelled. Any in-flight fetch is
// cancelled before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.runCtx = ctx
	e.metrics.SessionStarted()
	defer func() {
		e.cancelActive()
		e.stopTimer()
		close(e.done)
		e.closeSubscribers()
		e.metrics.SessionStopped()
	}()

	e.logger.Debug("engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("engine stopped")
			return ctx.Err()
		case c := <-e.cmds:
			e.handle(c)
			e.evaluate()
			e.publish()
			if s, ok := c.(syncCmd); ok {
				close(s.done)
			}
		}
	}
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// SetRequest replaces the current request. A nil or invalid request clears
// the session without fetching.
func (e *Engine) SetRequest(req *swaps.QuoteRequest) {
	var cp *swaps.QuoteRequest
	if req != nil {
		r := *req
		cp = &r
	}
	e.post(setRequestCmd{req: cp})
}

// SelectQuote picks a quote by index. Out of range indices are ignored.
func (e *Engine) SelectQuote(index int) { e.post(selectCmd{index: index}) }

// Refresh forces a new fan-out for the current request and restarts the
// auto-refresh window.
func (e *Engine) Refresh() { e.post(refreshCmd{}) }

// Abort cancels an in-flight fan-out. The session stays idle until the
// request changes or Refresh is called.
func (e *Engine) Abort() { e.post(abortCmd{}) }

// Clear drops the request and all quotes.
func (e *Engine) Clear() { e.post(clearCmd{}) }

// SetTransacting suspends fetching while a transaction is being signed and
// submitted. Turning it off discards the cached quotes and quotes afresh.
func (e *Engine) SetTransacting(on bool) { e.post(transactingCmd{on: on}) }

// Assemble builds the transaction for the selected quote. The returned quote
// is the one that was assembled, which may differ from a View taken earlier.
func (e *Engine) Assemble(ctx context.Context) (swaps.Quote, *swaps.Transaction, error) {
	v := e.View()
	if v.Selected == nil {
		return swaps.Quote{}, nil, ErrNoSelection
	}
	q := *v.Selected
	tx, err := q.Trade.Assemble(ctx)
	if err != nil {
		return q, nil, fmt.Errorf("assembling %s trade: %w", q.Provider, err)
	}
	return q, tx, nil
}

// Sync blocks until every command posted before it has been applied and
// the resulting view published.
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case e.cmds <- syncCmd{done: done}:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

type command interface{}

type (
	setRequestCmd  struct{ req *swaps.QuoteRequest }
	selectCmd      struct{ index int }
	refreshCmd     struct{}
	abortCmd       struct{}
	clearCmd       struct{}
	transactingCmd struct{ on bool }
	timerCmd       struct{ gen uint64 }
	syncCmd        struct{ done chan struct{} }
	fetchDoneCmd   struct {
		token   uint64
		key     string
		refresh bool
		quotes  []swaps.Quote
		err     error
	}
)

func (e *Engine) post(c command) {
	select {
	case e.cmds <- c:
	case <-e.done:
	}
}

func (e *Engine) handle(c command) {
	switch c := c.(type) {
	case setRequestCmd:
		e.handleSetRequest(c.req)
	case selectCmd:
		e.handleSelect(c.index)
	case refreshCmd:
		e.handleRefresh()
	case abortCmd:
		e.handleAbort()
	case clearCmd:
		e.reset()
	case transactingCmd:
		e.handleTransacting(c.on)
	case timerCmd:
		e.handleTimer(c.gen)
	case fetchDoneCmd:
		e.handleFetchDone(c)
	}
}

func (e *Engine) dispatch(a quotestate.Action) {
	e.state = quotestate.Reduce(e.state, a)
}

func (e *Engine) handleSetRequest(req *swaps.QuoteRequest) {
	if req == nil {
		e.reset()
		return
	}
	r, err := e.normalize(*req)
	if err != nil {
		e.logger.Debug("ignoring invalid request", "error", err)
		e.reset()
		return
	}

	key := fingerprint.Key(r)
	e.req = &r
	if fingerprint.KeysEqual(key, e.key) {
		return
	}
	e.logger.Debug("request changed", "key", key)
	e.key = key
	e.explicit = false
	e.held = false
	e.retained = nil
	e.warning = nil
	e.lastErr = ""
	e.stopTimer()
	e.startCycle()
}

func (e *Engine) normalize(r swaps.QuoteRequest) (swaps.QuoteRequest, error) {
	r.Amount.Currency = r.Amount.Currency.Normalized()
	r.To = r.To.Normalized()
	r.Receiver = swaps.NormalizeAddress(r.Receiver)
	r.Sender = swaps.NormalizeAddress(r.Sender)
	if err := r.Validate(); err != nil {
		return r, err
	}
	if e.currencies == nil {
		return r, nil
	}
	from, ok := e.currencies.GetCurrency(r.Amount.Currency.ChainID, r.Amount.Currency.Address)
	if !ok {
		return r, fmt.Errorf("%w: unknown currency %s", swaps.ErrInvalidInput, r.Amount.Currency.ID())
	}
	to, ok := e.currencies.GetCurrency(r.To.ChainID, r.To.Address)
	if !ok {
		return r, fmt.Errorf("%w: unknown currency %s", swaps.ErrInvalidInput, r.To.ID())
	}
	r.Amount.Currency = from.Normalized()
	r.To = to.Normalized()
	return r, nil
}

func (e *Engine) handleSelect(index int) {
	if e.transacting {
		return
	}
	switch e.state.Status {
	case quotestate.Success:
		if index < 0 || index >= len(e.state.Quotes) {
			return
		}
		e.dispatch(quotestate.SelectQuote{Index: index})
		e.explicit = true
	case quotestate.Fetching:
		r := e.retained
		if r == nil || index < 0 || index >= len(r.quotes) {
			return
		}
		r.index = index
		e.explicit = true
	default:
		return
	}
	e.checkSlippage()
}

func (e *Engine) handleRefresh() {
	if e.req == nil || e.transacting {
		return
	}
	e.held = false
	e.startCycle()
	switch e.state.Status {
	case quotestate.Success:
		e.dispatch(quotestate.Invalidate{})
	case quotestate.Error:
		e.startFetch(false)
	}
}

func (e *Engine) handleAbort() {
	if e.state.Status != quotestate.Fetching {
		return
	}
	e.logger.Debug("aborting fetch", "key", e.state.Key)
	e.cancelActive()
	e.stopTimer()
	e.dispatch(quotestate.Clear{})
	e.retained = nil
	e.explicit = false
	e.held = true
}

func (e *Engine) handleTransacting(on bool) {
	if on == e.transacting {
		return
	}
	e.transacting = on
	if on {
		e.cancelActive()
		e.stopTimer()
		return
	}
	e.cancelActive()
	e.dispatch(quotestate.Clear{})
	e.retained = nil
	e.explicit = false
	e.held = false
	e.warning = nil
	e.lastErr = ""
	if e.validator != nil {
		e.validator.Reset()
	}
	e.startCycle()
}

func (e *Engine) handleTimer(gen uint64) {
	if gen != e.timerGen || e.transacting {
		return
	}
	e.timer = nil
	if e.state.Status != quotestate.Success || e.state.Key != e.key {
		return
	}
	e.dispatch(quotestate.Invalidate{})
}

func (e *Engine) handleFetchDone(d fetchDoneCmd) {
	if d.token == 0 || d.token != e.token {
		e.logger.Debug("discarding stale fetch result", "key", d.key)
		return
	}
	e.cancelActive()

	prev := e.retained
	e.retained = nil

	if d.err != nil {
		e.dispatch(quotestate.FetchError{Key: d.key, Err: d.err})
		e.lastErr = userMessage(d.err)
		e.warning = nil
		e.metrics.ObserveOutcome("error")
		e.logger.Warn("quote fetch failed", "key", d.key, "error", d.err)
		return
	}

	e.dispatch(quotestate.FetchSuccess{Key: d.key, Quotes: d.quotes, At: e.now()})
	if e.state.Status != quotestate.Success {
		e.lastErr = e.state.Message
		e.metrics.ObserveOutcome("error")
		return
	}
	e.fetchedAt = e.state.FetchedAt
	e.lastErr = ""

	previous := -1
	if prev != nil && prev.key == d.key {
		previous = prev.index
	}
	if idx := SelectIndex(d.refresh, e.explicit, previous, len(e.state.Quotes)); idx != 0 {
		e.dispatch(quotestate.SelectQuote{Index: idx})
	}
	e.metrics.ObserveOutcome("success")
	e.logger.Debug("quotes updated", "key", d.key, "count", len(e.state.Quotes), "refresh", d.refresh)
	e.checkSlippage()
	e.armTimer()
}

// evaluate starts a fan-out when the current request has no usable result.
func (e *Engine) evaluate() {
	if e.req == nil || e.transacting || e.held {
		return
	}
	s := e.state
	if s.Key == e.key {
		switch s.Status {
		case quotestate.Fetching:
			if e.token != 0 {
				return
			}
			e.startFetch(e.retained != nil)
			return
		case quotestate.Success:
			if !s.Stale(e.now(), e.interval) || e.autoStopped {
				return
			}
			if e.ceilingReached() {
				e.autoStopped = true
				e.stopTimer()
				e.metrics.ObserveCeilingTrip()
				e.logger.Info("auto refresh stopped", "key", e.key, "window", e.now().Sub(e.cycleStart))
				return
			}
			e.startFetch(true)
			return
		case quotestate.Error:
			return
		}
	}
	e.startFetch(false)
}

func (e *Engine) startFetch(refresh bool) {
	e.cancelActive()
	e.stopTimer()

	if refresh {
		if s := e.state; s.Status == quotestate.Success {
			e.retained = &retainedQuotes{
				key:       s.Key,
				quotes:    s.Quotes,
				index:     s.SelectedIndex,
				fetchedAt: e.fetchedAt,
			}
		}
	} else {
		e.retained = nil
	}

	e.seq++
	token := e.seq
	ctx, cancel := context.WithCancel(e.runCtx)
	e.token = token
	e.cancel = cancel

	started := e.now()
	e.dispatch(quotestate.FetchStart{Key: e.key, At: started})
	e.metrics.ObserveFetch(refresh)
	e.logger.Debug("fetching quotes", "key", e.key, "refresh", refresh)

	go e.fetch(ctx, token, e.key, refresh, *e.req, started)
}

func (e *Engine) fetch(ctx context.Context, token uint64, key string, refresh bool, req swaps.QuoteRequest, started time.Time) {
	quotes, err := e.fetcher.Fetch(ctx, req)
	finished := e.now()
	// The Run loop cancels ctx once it accepts the result.
	outcome := fetchOutcome(ctx, err)
	e.post(fetchDoneCmd{token: token, key: key, refresh: refresh, quotes: quotes, err: err})

	if e.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	rec := FetchRecord{
		ID:         uuid.NewString(),
		SessionID:  e.id,
		Key:        key,
		Request:    req,
		Refresh:    refresh,
		Outcome:    outcome,
		Quotes:     quotes,
		Err:        err,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := e.recorder.RecordFetch(rctx, rec); err != nil {
		e.logger.Warn("failed to record fetch", "key", key, "error", err)
	}
}

func fetchOutcome(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return "cancelled"
	case err != nil:
		return "error"
	}
	return "success"
}

func (e *Engine) cancelActive() {
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = nil
	e.token = 0
}

func (e *Engine) armTimer() {
	e.stopTimer()
	if e.autoStopped {
		return
	}
	gen := e.timerGen
	e.timer = time.AfterFunc(e.interval, func() {
		e.post(timerCmd{gen: gen})
	})
}

func (e *Engine) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (e *Engine) startCycle() {
	e.cycleStart = e.now()
	e.autoStopped = false
}

func (e *Engine) ceilingReached() bool {
	return e.ceiling > 0 && e.now().Sub(e.cycleStart) >= e.ceiling
}

func (e *Engine) reset() {
	e.cancelActive()
	e.stopTimer()
	e.dispatch(quotestate.Clear{})
	e.req = nil
	e.key = ""
	e.explicit = false
	e.held = false
	e.retained = nil
	e.warning = nil
	e.lastErr = ""
	e.autoStopped = false
}

func (e *Engine) checkSlippage() {
	e.warning = nil
	if e.validator == nil || e.req == nil || e.req.MinOutput == nil {
		return
	}
	var out *big.Int
	switch e.state.Status {
	case quotestate.Success:
		if q, ok := e.state.Selected(); ok {
			out = q.RealizedOutput()
		}
	case quotestate.Fetching:
		if r := e.retained; r != nil && r.index >= 0 && r.index < len(r.quotes) {
			out = r.quotes[r.index].RealizedOutput()
		}
	}
	if out == nil {
		return
	}
	if w := e.validator.Check(out, e.req.MinOutput); w != nil {
		w.SuggestedInput = e.validator.Estimate(e.req.Amount.Value, out, e.req.MinOutput)
		e.warning = w
		e.metrics.ObserveSlippageWarning()
		e.logger.Warn("quote below required output", "shortfall_bps", w.ShortfallBps, "buffer_bps", w.BufferBps)
	}
}

func userMessage(err error) string {
	if errors.Is(err, swaps.ErrNoQuoteAvailable) {
		return swaps.ErrNoQuoteAvailable.Error()
	}
	return err.Error()
}
