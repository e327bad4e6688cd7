package thorchain

import "github.com/RaghavSood/quoteflow/swaps"

const (
	ThornodeBaseURL = "https://thornode.ninerealms.com"

	// THORChain expresses every amount with 8 decimals.
	thorDecimals = 8
)

// Thorchain Router ABI for depositWithExpiry
const RouterDepositABI = `[{"inputs":[{"name":"vault","type":"address"},{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"memo","type":"string"},{"name":"expiry","type":"uint256"}],"name":"depositWithExpiry","outputs":[],"stateMutability":"payable","type":"function"}]`

var routerABI = swaps.MustParseABI(RouterDepositABI)

// chainCodes maps chain IDs to THORChain chain identifiers.
var chainCodes = map[uint64]string{
	swaps.ChainEthereum:    "ETH",
	swaps.ChainBSC:         "BSC",
	swaps.ChainBase:        "BASE",
	swaps.ChainAvalanche:   "AVAX",
	swaps.ChainBitcoin:     "BTC",
	swaps.ChainLitecoin:    "LTC",
	swaps.ChainDogecoin:    "DOGE",
	swaps.ChainBitcoinCash: "BCH",
	swaps.ChainThorchain:   "THOR",
}

func chainFromCode(code string) (uint64, bool) {
	for id, c := range chainCodes {
		if c == code {
			return id, true
		}
	}
	return 0, false
}
