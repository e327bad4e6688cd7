package thorchain

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/swaps"
)

// minExpiry is how far in the future deposits must remain valid.
const minExpiry = time.Hour

type Provider struct {
	client *Client
	now    func() time.Time
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Name() string {
	return "thorchain"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Bridge
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	from := req.Amount.Currency
	chain, ok := swaps.ChainByID(from.ChainID)
	if !ok || !chain.EVM {
		return nil, fmt.Errorf("%w: thorchain deposits from %s", swaps.ErrUnsupportedPair, from)
	}
	fromAsset, ok := AssetFor(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, from)
	}
	toAsset, ok := AssetFor(req.To)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, req.To)
	}

	amount := swaps.Rescale(req.Amount.Value, from.Decimals, thorDecimals)
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount below thorchain precision", swaps.ErrInvalidInput)
	}

	q, err := p.client.GetQuote(ctx, QuoteParams{
		FromAsset:    fromAsset,
		ToAsset:      toAsset,
		Amount:       amount,
		Destination:  req.Receiver,
		RefundTo:     req.Refund(),
		ToleranceBps: req.SlippageBps(),
	})
	if err != nil {
		return nil, err
	}

	expected, ok := new(big.Int).SetString(q.ExpectedAmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("invalid expected_amount_out %q", q.ExpectedAmountOut)
	}
	if !common.IsHexAddress(q.InboundAddress) {
		return nil, fmt.Errorf("invalid inbound address %q", q.InboundAddress)
	}
	if !from.IsNative() && !common.IsHexAddress(q.Router) {
		return nil, fmt.Errorf("quote for %s has no router", fromAsset)
	}

	return &Trade{
		from:     from,
		amount:   new(big.Int).Set(req.Amount.Value),
		output:   swaps.Rescale(expected, thorDecimals, req.To.Decimals),
		quote:    q,
		now:      p.now,
		toAsset:  toAsset,
		fromCode: fromAsset,
	}, nil
}

// Trade is a quoted THORChain swap.
type Trade struct {
	from     swaps.Currency
	amount   *big.Int
	output   *big.Int
	quote    *QuoteResponse
	now      func() time.Time
	toAsset  string
	fromCode string
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

func (t *Trade) Memo() string { return t.quote.Memo }

func (t *Trade) Assemble(ctx context.Context) (*swaps.Transaction, error) {
	if t.quote.Expiry > 0 && t.now().Unix() >= t.quote.Expiry {
		return nil, fmt.Errorf("thorchain quote expired at %s", time.Unix(t.quote.Expiry, 0).UTC())
	}

	vault := common.HexToAddress(t.quote.InboundAddress)
	meta := map[string]string{
		"memo":    t.quote.Memo,
		"vault":   t.quote.InboundAddress,
		"route":   t.fromCode + " -> " + t.toAsset,
		"fee_bps": strconv.Itoa(t.quote.Fees.TotalBps),
	}

	if t.from.IsNative() {
		return &swaps.Transaction{
			ChainID: t.from.ChainID,
			To:      vault,
			Value:   new(big.Int).Set(t.amount),
			Data:    []byte(t.quote.Memo),
			Meta:    meta,
		}, nil
	}

	// Ensure expiry is at least an hour in the future.
	expiry := t.quote.Expiry
	if floor := t.now().Add(minExpiry).Unix(); expiry < floor {
		expiry = floor
	}

	router := common.HexToAddress(t.quote.Router)
	data, err := routerABI.Pack("depositWithExpiry", vault, t.from.EVMAddress(), t.amount, t.quote.Memo, big.NewInt(expiry))
	if err != nil {
		return nil, fmt.Errorf("packing deposit: %w", err)
	}
	meta["router"] = t.quote.Router

	return &swaps.Transaction{
		ChainID: t.from.ChainID,
		To:      router,
		Value:   new(big.Int),
		Data:    data,
		Gas:     200_000,
		Approval: &swaps.Approval{
			Token:   t.from.EVMAddress(),
			Spender: router,
			Amount:  new(big.Int).Set(t.amount),
		},
		Meta: meta,
	}, nil
}
