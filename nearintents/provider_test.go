package nearintents

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/swaps"
)

type fakeAPI struct {
	tokens     []Token
	tokenCalls atomic.Int32
	quote      *Quote
	err        error
	got        QuoteParams
}

func (f *fakeAPI) Tokens(context.Context) ([]Token, error) {
	f.tokenCalls.Add(1)
	return f.tokens, nil
}

func (f *fakeAPI) Quote(_ context.Context, p QuoteParams) (*Quote, error) {
	f.got = p
	return f.quote, f.err
}

var listing = []Token{
	{AssetID: "nep141:base-0x833589fcd6edb6e08f4c7c32d4f71b54bda02913.omft.near", Symbol: "USDC", Blockchain: "base", ContractAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	{AssetID: "nep141:btc.omft.near", Symbol: "BTC", Blockchain: "btc", Decimals: 8},
	{AssetID: "nep141:eth.omft.near", Symbol: "ETH", Blockchain: "eth", Decimals: 18},
	{AssetID: "nep141:ton.omft.near", Symbol: "TON", Blockchain: "ton", Decimals: 9},
}

var (
	baseUSDC = swaps.Currency{ChainID: swaps.ChainBase, Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Decimals: 6}
	btc      = swaps.Currency{ChainID: swaps.ChainBitcoin, Symbol: "BTC", Decimals: 8}
)

func request() swaps.QuoteRequest {
	return swaps.QuoteRequest{
		Amount:   swaps.Amount{Currency: baseUSDC, Value: big.NewInt(25_000_000)},
		To:       btc,
		Slippage: decimal.RequireFromString("0.005"),
		Receiver: "bc1qrecipient",
		Sender:   "0x3333333333333333333333333333333333333333",
	}
}

func TestFetch(t *testing.T) {
	api := &fakeAPI{
		tokens: listing,
		quote:  &Quote{DepositAddress: "0x4444444444444444444444444444444444444444", AmountOut: "24000", CorrelationID: "c-1"},
	}
	p := NewProvider(api)

	trade, err := p.Fetch(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "24000", trade.RealizedOutput().String())

	assert.Equal(t, "nep141:base-0x833589fcd6edb6e08f4c7c32d4f71b54bda02913.omft.near", api.got.OriginAsset)
	assert.Equal(t, "nep141:btc.omft.near", api.got.DestinationAsset)
	assert.Equal(t, "25000000", api.got.Amount)
	assert.EqualValues(t, 50, api.got.SlippageBps)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", api.got.RefundTo)
	assert.Equal(t, "bc1qrecipient", api.got.Recipient)

	tx, err := trade.Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, baseUSDC.EVMAddress(), tx.To, "ERC-20 transfer goes to the token")
	assert.Equal(t, "0x4444444444444444444444444444444444444444", common.BytesToAddress(tx.Data[16:36]).Hex())
	assert.Equal(t, "c-1", tx.Meta["correlation_id"])

	_, err = p.Fetch(context.Background(), request())
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.tokenCalls.Load(), "token list is cached")
}

func TestFetchUnlisted(t *testing.T) {
	p := NewProvider(&fakeAPI{tokens: listing})
	req := request()
	req.To = swaps.Currency{ChainID: swaps.ChainSolana, Symbol: "SOL", Decimals: 9}
	_, err := p.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, swaps.ErrUnsupportedPair)
}

func TestFetchRejectsBadDepositAddress(t *testing.T) {
	p := NewProvider(&fakeAPI{tokens: listing, quote: &Quote{AmountOut: "1"}})
	_, err := p.Fetch(context.Background(), request())
	assert.ErrorContains(t, err, "deposit address")
}

func TestFetchPropagatesError(t *testing.T) {
	boom := errors.New("rate limited")
	p := NewProvider(&fakeAPI{tokens: listing, err: boom})
	_, err := p.Fetch(context.Background(), request())
	assert.ErrorIs(t, err, boom)
}

func TestCurrencySource(t *testing.T) {
	p := NewProvider(&fakeAPI{tokens: listing})
	r := resolver.NewRegistry(p.CurrencySource())
	require.NoError(t, r.Load(context.Background()))

	c, ok := r.GetCurrency(swaps.ChainBase, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	require.True(t, ok)
	assert.EqualValues(t, 6, c.Decimals)

	c, ok = r.Lookup(swaps.ChainBitcoin, "btc")
	require.True(t, ok)
	assert.True(t, c.IsNative())

	assert.Len(t, r.Currencies(0), 3, "chains we do not model are skipped")
}
