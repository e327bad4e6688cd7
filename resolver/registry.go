// Package resolver maps user-facing asset notation to currencies. Currency
// lists come from any number of cached sources: the built-in table and the
// token lists published by bridge providers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/RaghavSood/quoteflow/swaps"
)

// Source is a named currency list.
type Source struct {
	Name  string
	Store *Store[[]swaps.Currency]
}

// Registry merges currency sources. Earlier sources win when two sources
// describe the same currency.
type Registry struct {
	sources []Source
	unsubs  []func()

	mu       sync.RWMutex
	byID     map[string]swaps.Currency
	bySymbol map[string][]swaps.Currency // chainID:SYMBOL
}

func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: sources}
	for _, src := range sources {
		r.unsubs = append(r.unsubs, src.Store.Subscribe(func([]swaps.Currency) { r.rebuild() }))
	}
	r.rebuild()
	return r
}

// Load initializes every source. A failing source is skipped; the error
// reports all failures.
func (r *Registry) Load(ctx context.Context) error {
	var errs []error
	for _, src := range r.sources {
		if err := src.Store.Init(ctx); err != nil {
			log.Printf("resolver: loading %s currencies: %v", src.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Invalidate expires every source and reloads them.
func (r *Registry) Invalidate(ctx context.Context) error {
	for _, src := range r.sources {
		src.Store.Invalidate()
	}
	var errs []error
	for _, src := range r.sources {
		if _, err := src.Store.GetOrLoad(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close detaches the registry from its sources.
func (r *Registry) Close() {
	for _, u := range r.unsubs {
		u()
	}
	r.unsubs = nil
}

func symbolKey(chainID uint64, symbol string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToUpper(symbol))
}

func (r *Registry) rebuild() {
	byID := make(map[string]swaps.Currency)
	bySymbol := make(map[string][]swaps.Currency)
	for _, src := range r.sources {
		list, ok := src.Store.Get()
		if !ok {
			continue
		}
		for _, c := range list {
			c = c.Normalized()
			if c.IsZero() || c.Symbol == "" {
				continue
			}
			id := c.ID()
			if _, dup := byID[id]; dup {
				continue
			}
			byID[id] = c
			k := symbolKey(c.ChainID, c.Symbol)
			bySymbol[k] = append(bySymbol[k], c)
		}
	}

	r.mu.Lock()
	r.byID = byID
	r.bySymbol = bySymbol
	r.mu.Unlock()
}

// GetCurrency returns the known currency at address on chainID. An empty
// address is the chain's native currency.
func (r *Registry) GetCurrency(chainID uint64, address string) (swaps.Currency, bool) {
	id := swaps.Currency{ChainID: chainID, Address: address}.Normalized().ID()
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// Lookup finds a currency by symbol. It fails when the symbol is unknown or
// ambiguous on the chain.
func (r *Registry) Lookup(chainID uint64, symbol string) (swaps.Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := r.bySymbol[symbolKey(chainID, symbol)]
	if len(matches) != 1 {
		return swaps.Currency{}, false
	}
	return matches[0], true
}

// Resolve turns parsed asset notation into a currency.
func (r *Registry) Resolve(a swaps.Asset) (swaps.Currency, error) {
	if a.ContractAddress != "" {
		c, ok := r.GetCurrency(a.Chain.ID, a.ContractAddress)
		if !ok {
			return swaps.Currency{}, fmt.Errorf("%w: unknown token %s", swaps.ErrInvalidInput, a)
		}
		return c, nil
	}
	if a.IsNative() {
		if c, ok := r.GetCurrency(a.Chain.ID, ""); ok {
			return c, nil
		}
	}

	r.mu.RLock()
	matches := r.bySymbol[symbolKey(a.Chain.ID, a.Symbol)]
	r.mu.RUnlock()
	switch len(matches) {
	case 0:
		return swaps.Currency{}, fmt.Errorf("%w: unknown token %s", swaps.ErrInvalidInput, a)
	case 1:
		return matches[0], nil
	default:
		return swaps.Currency{}, fmt.Errorf("%w: %s is ambiguous on %s, specify %s.%s-<contract>",
			swaps.ErrInvalidInput, a.Symbol, a.Chain.Name, a.Chain.Name, a.Symbol)
	}
}

// Currencies lists known currencies, optionally restricted to one chain,
// ordered by chain then symbol.
func (r *Registry) Currencies(chainID uint64) []swaps.Currency {
	r.mu.RLock()
	out := make([]swaps.Currency, 0, len(r.byID))
	for _, c := range r.byID {
		if chainID != 0 && c.ChainID != chainID {
			continue
		}
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChainID != out[j].ChainID {
			return out[i].ChainID < out[j].ChainID
		}
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Address < out[j].Address
	})
	return out
}
