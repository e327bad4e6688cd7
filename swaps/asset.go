package swaps

import (
	"fmt"
	"strings"
)

// Asset is the user-facing notation for a currency: CHAIN.SYMBOL or
// CHAIN.SYMBOL-CONTRACT, e.g. "BASE.USDC" or
// "ETH.USDC-0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48". It is resolved to a
// Currency through a registry.
type Asset struct {
	Chain           Chain
	Symbol          string
	ContractAddress string // normalized; empty when only the symbol was given
}

func ParseAsset(s string) (Asset, error) {
	chainName, rest, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || chainName == "" || rest == "" {
		return Asset{}, fmt.Errorf("%w: asset %q is not CHAIN.SYMBOL", ErrInvalidInput, s)
	}
	chain, ok := ChainByName(chainName)
	if !ok {
		return Asset{}, fmt.Errorf("%w: unknown chain %q", ErrInvalidInput, chainName)
	}

	symbol, contract, _ := strings.Cut(rest, "-")
	if symbol == "" {
		return Asset{}, fmt.Errorf("%w: asset %q has no symbol", ErrInvalidInput, s)
	}
	return Asset{
		Chain:           chain,
		Symbol:          strings.ToUpper(symbol),
		ContractAddress: NormalizeAddress(contract),
	}, nil
}

func (a Asset) String() string {
	s := a.Chain.Name + "." + a.Symbol
	if a.ContractAddress != "" {
		s += "-" + a.ContractAddress
	}
	return s
}

// IsNative reports whether the asset names the chain's gas token.
func (a Asset) IsNative() bool {
	return a.ContractAddress == "" && strings.EqualFold(a.Symbol, a.Chain.NativeSymbol)
}
