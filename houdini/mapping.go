package houdini

import "github.com/RaghavSood/quoteflow/swaps"

func native(chainID uint64) string {
	return swaps.Currency{ChainID: chainID}.ID()
}

func token(chainID uint64, addr string) string {
	return swaps.Currency{ChainID: chainID, Address: addr}.ID()
}

// symbols maps currency IDs to Houdini token IDs.
var symbols = map[string]string{
	native(swaps.ChainBitcoin):     "BTC",
	native(swaps.ChainEthereum):    "ETH",
	native(swaps.ChainSolana):      "SOL",
	native(swaps.ChainAvalanche):   "AVAXC", // C-chain
	native(swaps.ChainBase):        "ETHBASE",
	native(swaps.ChainArbitrum):    "ETHARB",
	native(swaps.ChainBSC):         "BNB",
	native(swaps.ChainThorchain):   "RUNE",
	native(swaps.ChainLitecoin):    "LTC",
	native(swaps.ChainBitcoinCash): "BCH",
	native(swaps.ChainDogecoin):    "DOGE",

	token(swaps.ChainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"):      "USDCBASE",
	token(swaps.ChainAvalanche, "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"): "USDCAVAXC",
}

// Symbol looks up the Houdini token ID for a currency.
func Symbol(c swaps.Currency) (string, bool) {
	sym, ok := symbols[c.ID()]
	return sym, ok
}
