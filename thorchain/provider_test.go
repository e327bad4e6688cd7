package thorchain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/RaghavSood/quoteflow/swaps"
)

var (
	baseUSDC = swaps.Currency{ChainID: swaps.ChainBase, Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Decimals: 6}
	btc      = swaps.Currency{ChainID: swaps.ChainBitcoin, Symbol: "BTC", Decimals: 8}
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1))
}

func TestAssetFor(t *testing.T) {
	a, ok := AssetFor(baseUSDC)
	require.True(t, ok)
	assert.Equal(t, "BASE.USDC-0X833589FCD6EDB6E08F4C7C32D4F71B54BDA02913", a)

	a, ok = AssetFor(btc)
	require.True(t, ok)
	assert.Equal(t, "BTC.BTC", a)

	_, ok = AssetFor(swaps.Currency{ChainID: swaps.ChainArbitrum, Symbol: "ETH"})
	assert.False(t, ok)
}

func TestCurrencyForPool(t *testing.T) {
	c, ok := currencyForPool(Pool{Asset: "BASE.USDC-0X833589FCD6EDB6E08F4C7C32D4F71B54BDA02913", Status: "Available", Decimals: 6})
	require.True(t, ok)
	assert.Equal(t, baseUSDC, c)

	c, ok = currencyForPool(Pool{Asset: "BTC.BTC", Status: "Available"})
	require.True(t, ok)
	assert.EqualValues(t, 8, c.Decimals)

	_, ok = currencyForPool(Pool{Asset: "BTC.BTC", Status: "Staged"})
	assert.False(t, ok)
	_, ok = currencyForPool(Pool{Asset: "ETH.FOO-0X1111111111111111111111111111111111111111", Status: "Available"})
	assert.False(t, ok, "token without decimals")
}

func TestFetchAndAssemble(t *testing.T) {
	var got map[string]string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/thorchain/quote/swap", r.URL.Path)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(QuoteResponse{
			InboundAddress:    "0x1111111111111111111111111111111111111111",
			Router:            "0x2222222222222222222222222222222222222222",
			Expiry:            time.Now().Add(10 * time.Minute).Unix(),
			Memo:              "=:BTC.BTC:bc1qexample:0/1/0",
			ExpectedAmountOut: "152000",
		})
	})

	p := NewProvider(client)
	req := swaps.QuoteRequest{
		Amount:   swaps.Amount{Currency: baseUSDC, Value: big.NewInt(100_000_000)},
		To:       btc,
		Slippage: decimal.RequireFromString("0.01"),
		Receiver: "bc1qexample",
		Sender:   "0x3333333333333333333333333333333333333333",
	}
	trade, err := p.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "BASE.USDC-0X833589FCD6EDB6E08F4C7C32D4F71B54BDA02913", got["from_asset"])
	assert.Equal(t, "BTC.BTC", got["to_asset"])
	assert.Equal(t, "10000000000", got["amount"], "100 USDC in 1e8 units")
	assert.Equal(t, "100", got["tolerance_bps"])
	assert.Equal(t, "0x3333333333333333333333333333333333333333", got["refund_address"])
	assert.Equal(t, "152000", trade.RealizedOutput().String())

	tx, err := trade.Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), tx.To)
	require.NotNil(t, tx.Approval)
	assert.Equal(t, "100000000", tx.Approval.Amount.String())

	args, err := routerABI.Methods["depositWithExpiry"].Inputs.Unpack(tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), args[0])
	assert.Equal(t, baseUSDC.EVMAddress(), args[1])
	assert.Equal(t, "=:BTC.BTC:bc1qexample:0/1/0", args[3])
	assert.GreaterOrEqual(t, args[4].(*big.Int).Int64(), time.Now().Add(59*time.Minute).Unix())
}

func TestAssembleNativeIsValueTransfer(t *testing.T) {
	eth := swaps.Currency{ChainID: swaps.ChainEthereum, Symbol: "ETH", Decimals: 18}
	trade := &Trade{
		from:   eth,
		amount: big.NewInt(1e18),
		output: big.NewInt(1),
		quote:  &QuoteResponse{InboundAddress: "0x1111111111111111111111111111111111111111", Memo: "=:BTC.BTC:bc1q"},
		now:    time.Now,
	}
	tx, err := trade.Assemble(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tx.Approval)
	assert.Equal(t, "1000000000000000000", tx.Value.String())
	assert.Equal(t, []byte("=:BTC.BTC:bc1q"), tx.Data)
}

func TestAssembleExpired(t *testing.T) {
	trade := &Trade{
		from:  baseUSDC,
		quote: &QuoteResponse{Expiry: time.Now().Add(-time.Minute).Unix()},
		now:   time.Now,
	}
	_, err := trade.Assemble(context.Background())
	assert.ErrorContains(t, err, "expired")
}

func TestFetchRejectsNonEVMSource(t *testing.T) {
	p := NewProvider(NewClient("http://unused", nil, nil))
	_, err := p.Fetch(context.Background(), swaps.QuoteRequest{
		Amount: swaps.Amount{Currency: btc, Value: big.NewInt(1)},
		To:     baseUSDC,
	})
	assert.ErrorIs(t, err, swaps.ErrUnsupportedPair)
}

func TestClientErrorStatus(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"pool not available"}`, http.StatusBadRequest)
	})
	_, err := client.GetQuote(context.Background(), QuoteParams{Amount: big.NewInt(1)})
	assert.ErrorContains(t, err, "returned 400")
}

func TestLimiterHonoursContext(t *testing.T) {
	client := NewClient("http://unused", nil, rate.NewLimiter(rate.Every(time.Hour), 1))
	client.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetPools(ctx)
	assert.Error(t, err)
}
