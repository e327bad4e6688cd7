package swaps

import (
	"sort"
	"strings"
)

// EVM chain IDs.
const (
	ChainEthereum  uint64 = 1
	ChainOptimism  uint64 = 10
	ChainBSC       uint64 = 56
	ChainPolygon   uint64 = 137
	ChainMoonbeam  uint64 = 1284
	ChainBase      uint64 = 8453
	ChainArbitrum  uint64 = 42161
	ChainAvalanche uint64 = 43114
)

// Non-EVM chains get identifiers outside the EIP-155 range in use so they can
// share the same ChainID field.
const (
	ChainBitcoin     uint64 = 20000000000001
	ChainLitecoin    uint64 = 20000000000002
	ChainDogecoin    uint64 = 20000000000003
	ChainBitcoinCash uint64 = 20000000000004
	ChainSolana      uint64 = 20000000000005
	ChainNear        uint64 = 20000000000006
	ChainThorchain   uint64 = 20000000000007
)

// Chain describes a network the engine can quote on.
type Chain struct {
	ID           uint64
	Name         string // short uppercase code used in asset notation, e.g. "BASE"
	NativeSymbol string
	Decimals     uint8
	EVM          bool
}

var chains = map[uint64]Chain{
	ChainEthereum:    {ID: ChainEthereum, Name: "ETH", NativeSymbol: "ETH", Decimals: 18, EVM: true},
	ChainOptimism:    {ID: ChainOptimism, Name: "OP", NativeSymbol: "ETH", Decimals: 18, EVM: true},
	ChainBSC:         {ID: ChainBSC, Name: "BSC", NativeSymbol: "BNB", Decimals: 18, EVM: true},
	ChainPolygon:     {ID: ChainPolygon, Name: "POLYGON", NativeSymbol: "POL", Decimals: 18, EVM: true},
	ChainMoonbeam:    {ID: ChainMoonbeam, Name: "GLMR", NativeSymbol: "GLMR", Decimals: 18, EVM: true},
	ChainBase:        {ID: ChainBase, Name: "BASE", NativeSymbol: "ETH", Decimals: 18, EVM: true},
	ChainArbitrum:    {ID: ChainArbitrum, Name: "ARB", NativeSymbol: "ETH", Decimals: 18, EVM: true},
	ChainAvalanche:   {ID: ChainAvalanche, Name: "AVAX", NativeSymbol: "AVAX", Decimals: 18, EVM: true},
	ChainBitcoin:     {ID: ChainBitcoin, Name: "BTC", NativeSymbol: "BTC", Decimals: 8},
	ChainLitecoin:    {ID: ChainLitecoin, Name: "LTC", NativeSymbol: "LTC", Decimals: 8},
	ChainDogecoin:    {ID: ChainDogecoin, Name: "DOGE", NativeSymbol: "DOGE", Decimals: 8},
	ChainBitcoinCash: {ID: ChainBitcoinCash, Name: "BCH", NativeSymbol: "BCH", Decimals: 8},
	ChainSolana:      {ID: ChainSolana, Name: "SOL", NativeSymbol: "SOL", Decimals: 9},
	ChainNear:        {ID: ChainNear, Name: "NEAR", NativeSymbol: "NEAR", Decimals: 24},
	ChainThorchain:   {ID: ChainThorchain, Name: "THOR", NativeSymbol: "RUNE", Decimals: 8},
}

// chainAliases maps alternative spellings users type to chain codes.
var chainAliases = map[string]string{
	"ETHEREUM":  "ETH",
	"OPTIMISM":  "OP",
	"BNB":       "BSC",
	"POL":       "POLYGON",
	"MATIC":     "POLYGON",
	"MOONBEAM":  "GLMR",
	"ARBITRUM":  "ARB",
	"AVALANCHE": "AVAX",
	"BITCOIN":   "BTC",
	"SOLANA":    "SOL",
}

// ChainByID returns the chain registered under id.
func ChainByID(id uint64) (Chain, bool) {
	c, ok := chains[id]
	return c, ok
}

// ChainByName resolves a chain code or alias (case-insensitive).
func ChainByName(name string) (Chain, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if alias, ok := chainAliases[name]; ok {
		name = alias
	}
	for _, c := range chains {
		if c.Name == name {
			return c, true
		}
	}
	return Chain{}, false
}

// Chains returns every known chain ordered by ID.
func Chains() []Chain {
	out := make([]Chain, 0, len(chains))
	for _, c := range chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NativeCurrency returns the gas currency of a chain.
func NativeCurrency(id uint64) (Currency, bool) {
	c, ok := chains[id]
	if !ok {
		return Currency{}, false
	}
	return Currency{ChainID: id, Symbol: c.NativeSymbol, Decimals: c.Decimals}, true
}
