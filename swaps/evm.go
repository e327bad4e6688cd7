package swaps

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var erc20ABI = MustParseABI(erc20ABIJSON)

// MustParseABI parses a JSON ABI definition and panics on malformed input.
// Only use it with package-level constants.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing ABI: %v", err))
	}
	return parsed
}

// ApproveData encodes an ERC-20 approve call.
func ApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}

// TransferTx builds a source-chain transaction sending amount of c to
// recipient: a plain value transfer for native currencies, an ERC-20
// transfer otherwise.
func TransferTx(c Currency, recipient common.Address, amount *big.Int) (*Transaction, error) {
	chain, ok := ChainByID(c.ChainID)
	if !ok || !chain.EVM {
		return nil, fmt.Errorf("%w: cannot build transactions on %s", ErrUnsupportedPair, c)
	}
	if c.IsNative() {
		return &Transaction{ChainID: c.ChainID, To: recipient, Value: new(big.Int).Set(amount)}, nil
	}
	data, err := erc20ABI.Pack("transfer", recipient, amount)
	if err != nil {
		return nil, fmt.Errorf("encoding transfer: %w", err)
	}
	return &Transaction{ChainID: c.ChainID, To: c.EVMAddress(), Value: new(big.Int), Data: data}, nil
}

// Rescale converts v between decimal precisions, truncating when precision
// is lost.
func Rescale(v *big.Int, from, to uint8) *big.Int {
	if v == nil {
		return nil
	}
	out := new(big.Int).Set(v)
	switch {
	case to > from:
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	case from > to:
		out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	}
	return out
}

// IsEVMAddress reports whether s is a 0x-prefixed 20 byte hex address.
func IsEVMAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
