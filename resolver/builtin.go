package resolver

import "github.com/RaghavSood/quoteflow/swaps"

func token(chainID uint64, symbol, address string, decimals uint8) swaps.Currency {
	return swaps.Currency{ChainID: chainID, Address: address, Symbol: symbol, Decimals: decimals}
}

var builtinTokens = []swaps.Currency{
	token(swaps.ChainEthereum, "USDC", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6),
	token(swaps.ChainEthereum, "USDT", "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6),
	token(swaps.ChainEthereum, "WETH", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18),
	token(swaps.ChainBase, "USDC", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6),
	token(swaps.ChainBase, "WETH", "0x4200000000000000000000000000000000000006", 18),
	token(swaps.ChainArbitrum, "USDC", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6),
	token(swaps.ChainArbitrum, "USDT", "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", 6),
	token(swaps.ChainArbitrum, "WETH", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18),
	token(swaps.ChainOptimism, "USDC", "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", 6),
	token(swaps.ChainOptimism, "WETH", "0x4200000000000000000000000000000000000006", 18),
	token(swaps.ChainPolygon, "USDC", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", 6),
	token(swaps.ChainAvalanche, "USDC", "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", 6),
	token(swaps.ChainBSC, "USDC", "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18),
	token(swaps.ChainBSC, "USDT", "0x55d398326f99059fF775485246999027B3197955", 18),
	token(swaps.ChainSolana, "USDC", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 6),
}

// BuiltinCurrencies returns every chain's native currency plus the major
// stablecoins and wrapped ether.
func BuiltinCurrencies() []swaps.Currency {
	out := make([]swaps.Currency, 0, len(builtinTokens)+16)
	for _, c := range swaps.Chains() {
		if n, ok := swaps.NativeCurrency(c.ID); ok {
			out = append(out, n)
		}
	}
	return append(out, builtinTokens...)
}

// Builtin is the static currency source.
func Builtin() Source {
	return Source{Name: "builtin", Store: Static(BuiltinCurrencies())}
}
