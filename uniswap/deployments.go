package uniswap

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/swaps"
)

// FeeTiers are the pool fees, in hundredths of a bip, quoted on every request.
var FeeTiers = []uint32{100, 500, 3000, 10000}

// Deployment holds the Uniswap V3 periphery contracts on one chain.
type Deployment struct {
	Quoter  common.Address // QuoterV2
	Router  common.Address // SwapRouter02
	Wrapped common.Address // wrapped native token
}

var (
	canonicalQuoter = common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	canonicalRouter = common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
)

var Deployments = map[uint64]Deployment{
	swaps.ChainEthereum: {Quoter: canonicalQuoter, Router: canonicalRouter, Wrapped: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")},
	swaps.ChainArbitrum: {Quoter: canonicalQuoter, Router: canonicalRouter, Wrapped: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")},
	swaps.ChainOptimism: {Quoter: canonicalQuoter, Router: canonicalRouter, Wrapped: common.HexToAddress("0x4200000000000000000000000000000000000006")},
	swaps.ChainPolygon:  {Quoter: canonicalQuoter, Router: canonicalRouter, Wrapped: common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270")},
	swaps.ChainBase: {
		Quoter:  common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"),
		Router:  common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481"),
		Wrapped: common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
}
