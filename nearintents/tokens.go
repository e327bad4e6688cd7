package nearintents

import (
	"context"
	"strings"
	"time"

	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/swaps"
)

// blockchains maps chain IDs to 1click blockchain field values.
var blockchains = map[uint64]string{
	swaps.ChainEthereum:    "eth",
	swaps.ChainOptimism:    "op",
	swaps.ChainBSC:         "bsc",
	swaps.ChainPolygon:     "pol",
	swaps.ChainBase:        "base",
	swaps.ChainArbitrum:    "arb",
	swaps.ChainAvalanche:   "avax",
	swaps.ChainBitcoin:     "btc",
	swaps.ChainLitecoin:    "ltc",
	swaps.ChainDogecoin:    "doge",
	swaps.ChainBitcoinCash: "bch",
	swaps.ChainSolana:      "sol",
	swaps.ChainNear:        "near",
}

func chainForBlockchain(b string) (uint64, bool) {
	for id, name := range blockchains {
		if strings.EqualFold(name, b) {
			return id, true
		}
	}
	return 0, false
}

// currency converts a token list entry. Tokens on chains we do not model
// are skipped.
func (t Token) currency() (swaps.Currency, bool) {
	chainID, ok := chainForBlockchain(t.Blockchain)
	if !ok || t.Symbol == "" {
		return swaps.Currency{}, false
	}
	c := swaps.Currency{
		ChainID:  chainID,
		Address:  t.ContractAddress, // empty for natives
		Symbol:   strings.ToUpper(t.Symbol),
		Decimals: t.Decimals,
	}
	return c.Normalized(), true
}

// tokenIndex finds the 1click asset ID for a currency.
type tokenIndex map[string]string

func newTokenIndex(tokens []Token) tokenIndex {
	idx := make(tokenIndex, len(tokens))
	for _, t := range tokens {
		c, ok := t.currency()
		if !ok {
			continue
		}
		if _, dup := idx[c.ID()]; !dup {
			idx[c.ID()] = t.AssetID
		}
	}
	return idx
}

func (idx tokenIndex) assetID(c swaps.Currency) (string, bool) {
	id, ok := idx[c.Normalized().ID()]
	return id, ok
}

func currencies(tokens []Token) []swaps.Currency {
	out := make([]swaps.Currency, 0, len(tokens))
	for _, t := range tokens {
		if c, ok := t.currency(); ok {
			out = append(out, c)
		}
	}
	return out
}

// CurrencySource exposes the 1click token list as a registry source. It
// shares the provider's token cache.
func (p *Provider) CurrencySource() resolver.Source {
	load := func(ctx context.Context) ([]swaps.Currency, error) {
		tokens, err := p.tokens.GetOrLoad(ctx)
		if err != nil {
			return nil, err
		}
		return currencies(tokens), nil
	}
	return resolver.Source{Name: "nearintents", Store: resolver.NewStore[[]swaps.Currency](load, tokenTTL)}
}

const tokenTTL = 10 * time.Minute
