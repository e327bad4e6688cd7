// Package fingerprint derives the identity of a quote request. Requests with
// equal keys are the same logical request no matter how they were built.
package fingerprint

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/RaghavSood/quoteflow/swaps"
)

const sep = "|"

// Key returns the fingerprint of req. It depends only on the source currency,
// amount, destination currency, slippage, receiver and attached calls.
func Key(req swaps.QuoteRequest) string {
	amount := "0"
	if req.Amount.Value != nil {
		amount = req.Amount.Value.String()
	}
	parts := []string{
		req.Amount.Currency.ID(),
		amount,
		req.To.ID(),
		req.Slippage.String(),
		swaps.NormalizeAddress(req.Receiver),
		CallsHash(req.Calls()),
	}
	return strings.Join(parts, sep)
}

// KeysEqual compares two keys. The empty key stands for "no request" and
// only equals itself.
func KeysEqual(a, b string) bool {
	return a == b
}

// CallsHash digests an ordered call list. Empty lists hash to "".
func CallsHash(calls []swaps.Call) string {
	if len(calls) == 0 {
		return ""
	}
	var buf []byte
	for _, c := range calls {
		h := CallHash(c)
		buf = append(buf, h[:]...)
	}
	return hex.EncodeToString(crypto.Keccak256(buf))
}

// CallHash digests one call: target, value, full calldata hash, gas, phase,
// kind and the kind-specific fields.
func CallHash(c swaps.Call) common.Hash {
	value := "0"
	if c.Value != nil {
		value = c.Value.String()
	}
	fields := []string{
		strings.ToLower(c.Target.Hex()),
		value,
		crypto.Keccak256Hash(c.Data).Hex(),
		strconv.FormatUint(c.Gas, 10),
		c.Phase.String(),
		c.Kind.String(),
	}
	if c.Kind == swaps.CallBalanceInjection {
		fields = append(fields, strings.ToLower(c.Token.Hex()), strconv.FormatUint(c.Offset, 10))
	}
	return crypto.Keccak256Hash([]byte(strings.Join(fields, sep)))
}
