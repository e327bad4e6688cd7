package swaps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/quoteflow/metrics"
)

const defaultConcurrency = 8

var errNotComposable = errors.New("provider cannot execute destination calls")

// Router fans a request out to the provider set that can serve it and ranks
// the results. It holds no per-request state.
type Router struct {
	aggregators []Provider
	bridges     []Provider
	limit       int
	logger      *slog.Logger
	metrics     *metrics.QuoteMetrics
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithConcurrency bounds the number of provider calls in flight per fetch.
func WithConcurrency(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithRouterLogger installs a logger for provider failures.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRouterMetrics records provider outcomes and latency.
func WithRouterMetrics(m *metrics.QuoteMetrics) RouterOption {
	return func(r *Router) {
		r.metrics = m
	}
}

// NewRouter splits providers into the aggregator and bridge sets, keeping
// registration order within each set.
func NewRouter(providers []Provider, opts ...RouterOption) *Router {
	r := &Router{
		limit:  defaultConcurrency,
		logger: slog.Default(),
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		switch p.Kind() {
		case Aggregator:
			r.aggregators = append(r.aggregators, p)
		case Bridge:
			r.bridges = append(r.bridges, p)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Providers returns the registered providers of the given kind.
func (r *Router) Providers(kind ProviderKind) []Provider {
	if kind == Aggregator {
		return append([]Provider(nil), r.aggregators...)
	}
	return append([]Provider(nil), r.bridges...)
}

// Fetch queries every eligible provider concurrently and returns the quotes
// sorted by realized output, highest first. A failing provider is logged and
// left out. If nothing usable comes back the error wraps ErrNoQuoteAvailable
// together with each provider's failure.
func (r *Router) Fetch(ctx context.Context, req QuoteRequest) ([]Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	set := r.bridges
	if req.SameChain() {
		set = r.aggregators
	}
	composed := !req.SameChain() && req.HasCalls()
	calls := req.Calls()

	type result struct {
		quote *Quote
		err   error
	}
	results := make([]result, len(set))

	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, p := range set {
		var cp ComposedProvider
		if composed {
			c, ok := p.(ComposedProvider)
			if !ok {
				r.logger.Debug("skipping provider without composed execution", "provider", p.Name())
				results[i].err = &ProviderError{Provider: p.Name(), Err: errNotComposable}
				continue
			}
			cp = c
		}
		g.Go(func() error {
			q, err := r.fetchOne(ctx, p, cp, req, calls)
			results[i] = result{quote: q, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		quotes []Quote
		errs   []error
	)
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		if res.quote != nil {
			quotes = append(quotes, *res.quote)
		}
	}

	if len(quotes) == 0 {
		if len(errs) == 0 {
			return nil, ErrNoQuoteAvailable
		}
		return nil, fmt.Errorf("%w: %w", ErrNoQuoteAvailable, errors.Join(errs...))
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].RealizedOutput().Cmp(quotes[j].RealizedOutput()) > 0
	})
	return quotes, nil
}

func (r *Router) fetchOne(ctx context.Context, p Provider, cp ComposedProvider, req QuoteRequest, calls []Call) (q *Quote, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			q = nil
			err = &ProviderError{Provider: p.Name(), Err: fmt.Errorf("panic: %v", rec)}
		}
		outcome := "success"
		switch {
		case err != nil && ctx.Err() != nil:
			outcome = "cancelled"
		case err != nil:
			outcome = "error"
			r.logger.Warn("provider quote failed", "provider", p.Name(), "kind", p.Kind().String(), "error", err)
		}
		r.metrics.ObserveProvider(p.Name(), outcome, time.Since(start))
	}()

	var trade Trade
	if cp != nil {
		trade, err = cp.FetchComposed(ctx, req, calls, req.DestinationGas)
	} else {
		trade, err = p.Fetch(ctx, req)
	}
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Err: err}
	}
	if trade == nil {
		return nil, &ProviderError{Provider: p.Name(), Err: errors.New("empty trade")}
	}
	if out := trade.RealizedOutput(); out == nil || out.Sign() <= 0 {
		return nil, &ProviderError{Provider: p.Name(), Err: errors.New("non-positive realized output")}
	}

	if req.SameChain() && req.HasCalls() {
		trade = &bundledTrade{Trade: trade, pre: req.PreCalls, post: req.PostCalls}
	}
	return &Quote{Provider: p.Name(), Kind: p.Kind(), Trade: trade}, nil
}

// bundledTrade attaches same-chain calls around an aggregator leg.
type bundledTrade struct {
	Trade
	pre, post []Call
}

func (b *bundledTrade) Assemble(ctx context.Context) (*Transaction, error) {
	tx, err := b.Trade.Assemble(ctx)
	if err != nil {
		return nil, err
	}
	tx.PreCalls = append(append([]Call(nil), b.pre...), tx.PreCalls...)
	tx.PostCalls = append(tx.PostCalls, b.post...)
	return tx, nil
}

// StaticTrade is a Trade with a fixed output and a prebuilt transaction.
// Useful for providers whose quote already carries the calldata.
type StaticTrade struct {
	Output *big.Int
	Tx     *Transaction
}

func (s StaticTrade) RealizedOutput() *big.Int { return s.Output }

func (s StaticTrade) Assemble(context.Context) (*Transaction, error) {
	if s.Tx == nil {
		return nil, errors.New("trade has no transaction")
	}
	tx := *s.Tx
	return &tx, nil
}
