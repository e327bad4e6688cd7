package uniswap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/swaps"
)

const quoterABIJSON = `[{
	"inputs": [{
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "fee", "type": "uint24"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"name": "params",
		"type": "tuple"
	}],
	"name": "quoteExactInputSingle",
	"outputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "sqrtPriceX96After", "type": "uint160"},
		{"name": "initializedTicksCrossed", "type": "uint32"},
		{"name": "gasEstimate", "type": "uint256"}
	],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

const routerABIJSON = `[{
	"inputs": [{
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "fee", "type": "uint24"},
			{"name": "recipient", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "amountOutMinimum", "type": "uint256"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		],
		"name": "params",
		"type": "tuple"
	}],
	"name": "exactInputSingle",
	"outputs": [{"name": "amountOut", "type": "uint256"}],
	"stateMutability": "payable",
	"type": "function"
}, {
	"inputs": [
		{"name": "amountMinimum", "type": "uint256"},
		{"name": "recipient", "type": "address"}
	],
	"name": "unwrapWETH9",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
}, {
	"inputs": [{"name": "data", "type": "bytes[]"}],
	"name": "multicall",
	"outputs": [{"name": "results", "type": "bytes[]"}],
	"stateMutability": "payable",
	"type": "function"
}]`

var (
	quoterABI = swaps.MustParseABI(quoterABIJSON)
	routerABI = swaps.MustParseABI(routerABIJSON)
)

// routerSelf is SwapRouter02's ADDRESS_THIS recipient constant: output is
// held by the router until a following unwrapWETH9.
var routerSelf = common.BigToAddress(big.NewInt(2))

type quoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}
