package simpleswap

import "github.com/RaghavSood/quoteflow/swaps"

func native(chainID uint64) string {
	return swaps.Currency{ChainID: chainID}.ID()
}

func token(chainID uint64, addr string) string {
	return swaps.Currency{ChainID: chainID, Address: addr}.ID()
}

// symbols maps currency IDs to SimpleSwap currency symbols. This is a
// curated list of assets we support.
var symbols = map[string]string{
	native(swaps.ChainBitcoin):     "btc",
	native(swaps.ChainEthereum):    "eth",
	native(swaps.ChainBase):        "ethbase",
	native(swaps.ChainArbitrum):    "etharb",
	native(swaps.ChainSolana):      "sol",
	native(swaps.ChainAvalanche):   "avaxc",
	native(swaps.ChainLitecoin):    "ltc",
	native(swaps.ChainDogecoin):    "doge",
	native(swaps.ChainBitcoinCash): "bch",

	token(swaps.ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"):  "usdc",
	token(swaps.ChainEthereum, "0xdAC17F958D2ee523a2206206994597C13D831ec7"):  "usdt",
	token(swaps.ChainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"):      "usdcbase",
	token(swaps.ChainAvalanche, "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"): "usdcavaxc",
}

// Symbol looks up the SimpleSwap symbol for a currency.
func Symbol(c swaps.Currency) (string, bool) {
	sym, ok := symbols[c.ID()]
	return sym, ok
}
