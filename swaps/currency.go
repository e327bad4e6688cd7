package swaps

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Currency identifies a token on a chain. Address is empty for the chain's
// native asset.
type Currency struct {
	ChainID  uint64
	Address  string
	Symbol   string
	Decimals uint8
}

// NormalizeAddress lowercases EVM hex addresses and trims everything else.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return addr
}

// Normalized returns c with a normalized address.
func (c Currency) Normalized() Currency {
	c.Address = NormalizeAddress(c.Address)
	return c
}

// IsZero reports whether c is unset.
func (c Currency) IsZero() bool {
	return c.ChainID == 0
}

// IsNative reports whether c is the native asset of its chain.
func (c Currency) IsNative() bool {
	return c.Address == ""
}

// ID is the normalized identity of c: "<chainID>:<address>" with "native"
// standing in for an empty address.
func (c Currency) ID() string {
	addr := NormalizeAddress(c.Address)
	if addr == "" {
		addr = "native"
	}
	return strconv.FormatUint(c.ChainID, 10) + ":" + addr
}

// EVMAddress returns the token contract, or the zero address for natives.
func (c Currency) EVMAddress() common.Address {
	if c.IsNative() {
		return common.Address{}
	}
	return common.HexToAddress(c.Address)
}

func (c Currency) String() string {
	chain, ok := ChainByID(c.ChainID)
	if !ok {
		return fmt.Sprintf("%d.%s", c.ChainID, c.Symbol)
	}
	return chain.Name + "." + c.Symbol
}

// Amount is an integer magnitude of a currency in its smallest unit.
type Amount struct {
	Currency Currency
	Value    *big.Int
}

// maxAmountDigits is the decimal length of 2^256.
const maxAmountDigits = 78

// ParseAmount converts a human decimal string ("100.5") into base units.
// Values that do not fit in a uint256 are rejected before they are expanded.
func ParseAmount(c Currency, s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: parsing amount %q: %v", ErrInvalidInput, s, err)
	}
	if d.Sign() <= 0 {
		return Amount{}, fmt.Errorf("%w: amount %q must be positive", ErrInvalidInput, s)
	}

	digits := int64(len(d.Coefficient().String()))
	exp := int64(d.Exponent()) + int64(c.Decimals)
	if digits+exp > maxAmountDigits {
		return Amount{}, fmt.Errorf("%w: amount %q is too large", ErrInvalidInput, s)
	}
	if exp < 0 && -exp > digits {
		return Amount{}, fmt.Errorf("%w: amount %q has more than %d decimals", ErrInvalidInput, s, c.Decimals)
	}

	scaled := d.Shift(int32(c.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, fmt.Errorf("%w: amount %q has more than %d decimals", ErrInvalidInput, s, c.Decimals)
	}
	v := scaled.BigInt()
	if v.BitLen() > 256 {
		return Amount{}, fmt.Errorf("%w: amount %q is too large", ErrInvalidInput, s)
	}
	return Amount{Currency: c, Value: v}, nil
}

// IsZero reports whether the amount is missing or not positive.
func (a Amount) IsZero() bool {
	return a.Value == nil || a.Value.Sign() <= 0
}

// Decimal returns the amount in whole units.
func (a Amount) Decimal() decimal.Decimal {
	if a.Value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.Value, -int32(a.Currency.Decimals))
}

// FormatUnits renders raw base units of c as a decimal string.
func FormatUnits(v *big.Int, c Currency) string {
	return Amount{Currency: c, Value: v}.Decimal().String()
}

func (a Amount) String() string {
	return a.Decimal().String() + " " + a.Currency.Symbol
}
