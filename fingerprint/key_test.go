package fingerprint

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/quoteflow/swaps"
)

var (
	usdc = swaps.Currency{ChainID: swaps.ChainBase, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Symbol: "USDC", Decimals: 6}
	eth  = swaps.Currency{ChainID: swaps.ChainBase, Symbol: "ETH", Decimals: 18}
	weth = swaps.Currency{ChainID: swaps.ChainBase, Address: "0x4200000000000000000000000000000000000006", Symbol: "WETH", Decimals: 18}
)

func baseRequest() swaps.QuoteRequest {
	return swaps.QuoteRequest{
		Amount:   swaps.Amount{Currency: usdc, Value: big.NewInt(100_000_000)},
		To:       eth,
		Slippage: decimal.RequireFromString("0.005"),
		Receiver: "0x000000000000000000000000000000000000dEaD",
		PostCalls: []swaps.Call{{
			Target: common.HexToAddress("0x1111111111111111111111111111111111111111"),
			Value:  big.NewInt(0),
			Data:   []byte{0xde, 0xad, 0xbe, 0xef},
			Gas:    100_000,
		}},
	}
}

func TestKeyDeterministic(t *testing.T) {
	a, b := baseRequest(), baseRequest()
	assert.Equal(t, Key(a), Key(b))
	assert.True(t, KeysEqual(Key(a), Key(b)))
}

func TestKeyNormalizes(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Receiver = "0x000000000000000000000000000000000000DEAD"
	b.Amount.Currency.Address = "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913"
	b.Slippage = decimal.RequireFromString("0.0050")
	assert.Equal(t, Key(a), Key(b))
}

func TestKeyIgnoresSender(t *testing.T) {
	a := baseRequest()
	b := baseRequest()
	b.Sender = "0x2222222222222222222222222222222222222222"
	assert.Equal(t, Key(a), Key(b))
}

func TestKeyChangesWithEachField(t *testing.T) {
	base := Key(baseRequest())

	mutations := map[string]func(r *swaps.QuoteRequest){
		"amount":      func(r *swaps.QuoteRequest) { r.Amount.Value = big.NewInt(100_000_001) },
		"slippage":    func(r *swaps.QuoteRequest) { r.Slippage = decimal.RequireFromString("0.01") },
		"destination": func(r *swaps.QuoteRequest) { r.To = weth },
		"source":      func(r *swaps.QuoteRequest) { r.Amount.Currency.ChainID = swaps.ChainEthereum },
		"receiver":    func(r *swaps.QuoteRequest) { r.Receiver = "0x000000000000000000000000000000000000bEEF" },
		"call target": func(r *swaps.QuoteRequest) {
			r.PostCalls[0].Target = common.HexToAddress("0x3333333333333333333333333333333333333333")
		},
		"call value":  func(r *swaps.QuoteRequest) { r.PostCalls[0].Value = big.NewInt(1) },
		"call gas":    func(r *swaps.QuoteRequest) { r.PostCalls[0].Gas = 1 },
		"call phase":  func(r *swaps.QuoteRequest) { r.PreCalls, r.PostCalls = r.PostCalls, nil },
		"no calls":    func(r *swaps.QuoteRequest) { r.PostCalls = nil },
		"call kind":   func(r *swaps.QuoteRequest) { r.PostCalls[0].Kind = swaps.CallBalanceInjection },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			r := baseRequest()
			mutate(&r)
			assert.NotEqual(t, base, Key(r))
		})
	}
}

// Calls that share calldata edges but differ in the middle must not collide.
func TestKeyHashesFullCalldata(t *testing.T) {
	body := make([]byte, 256)
	for i := range body {
		body[i] = byte(i)
	}
	a := baseRequest()
	a.PostCalls[0].Data = append([]byte(nil), body...)

	b := baseRequest()
	changed := append([]byte(nil), body...)
	changed[128] ^= 0xff
	b.PostCalls[0].Data = changed

	assert.NotEqual(t, Key(a), Key(b))
}

func TestBalanceInjectionFields(t *testing.T) {
	call := swaps.Call{
		Kind:   swaps.CallBalanceInjection,
		Target: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Token:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
		Offset: 36,
	}
	other := call
	other.Offset = 68
	require.NotEqual(t, CallHash(call), CallHash(other))

	other = call
	other.Token = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	require.NotEqual(t, CallHash(call), CallHash(other))
}

func TestCallsHashEmpty(t *testing.T) {
	assert.Equal(t, "", CallsHash(nil))
	assert.False(t, KeysEqual("", Key(baseRequest())))
}
