package thorchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/swaps"
)

// parsedPool is a pool asset split into its notation parts.
type parsedPool struct {
	Raw      string
	Chain    string
	Symbol   string
	Contract string // lowercase, empty for native
}

func parsePoolAsset(asset string) parsedPool {
	parts := strings.SplitN(asset, ".", 2)
	if len(parts) != 2 {
		return parsedPool{}
	}
	chain := parts[0]
	rest := parts[1]

	var symbol, contract string
	if idx := strings.Index(rest, "-"); idx != -1 {
		symbol = rest[:idx]
		contract = strings.ToLower(rest[idx+1:])
	} else {
		symbol = rest
	}

	return parsedPool{
		Raw:      asset,
		Chain:    chain,
		Symbol:   symbol,
		Contract: contract,
	}
}

// AssetFor returns the THORChain notation of c, e.g. "BASE.USDC-0X8335...".
func AssetFor(c swaps.Currency) (string, bool) {
	code, ok := chainCodes[c.ChainID]
	if !ok || c.Symbol == "" {
		return "", false
	}
	symbol := strings.ToUpper(c.Symbol)
	if c.IsNative() {
		return code + "." + symbol, true
	}
	return code + "." + symbol + "-" + strings.ToUpper(c.Address), true
}

// currencyForPool converts an available pool into a currency. Pools whose
// token decimals are unknown are skipped.
func currencyForPool(p Pool) (swaps.Currency, bool) {
	if p.Status != "Available" {
		return swaps.Currency{}, false
	}
	pp := parsePoolAsset(p.Asset)
	chainID, ok := chainFromCode(pp.Chain)
	if !ok {
		return swaps.Currency{}, false
	}
	chain, _ := swaps.ChainByID(chainID)

	c := swaps.Currency{ChainID: chainID, Symbol: pp.Symbol}
	switch {
	case pp.Contract == "" && strings.EqualFold(pp.Symbol, chain.NativeSymbol):
		c.Decimals = chain.Decimals
	case pp.Contract != "" && p.Decimals > 0:
		c.Address = pp.Contract
		c.Decimals = uint8(p.Decimals)
	default:
		return swaps.Currency{}, false
	}
	return c.Normalized(), true
}

// Currencies lists the currencies of every available pool.
func (c *Client) Currencies(ctx context.Context) ([]swaps.Currency, error) {
	pools, err := c.GetPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("thorchain pools: %w", err)
	}
	var out []swaps.Currency
	for _, p := range pools {
		if cur, ok := currencyForPool(p); ok {
			out = append(out, cur)
		}
	}
	return out, nil
}

// CurrencySource exposes the pool list as a registry source.
func (c *Client) CurrencySource(ttl time.Duration) resolver.Source {
	return resolver.Source{
		Name:  "thorchain",
		Store: resolver.NewStore[[]swaps.Currency](c.Currencies, ttl),
	}
}
