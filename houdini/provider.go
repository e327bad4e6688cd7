package houdini

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/RaghavSood/quoteflow/swaps"
)

type Provider struct {
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "houdini"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Bridge
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	from := req.Amount.Currency
	if chain, ok := swaps.ChainByID(from.ChainID); !ok || !chain.EVM {
		return nil, fmt.Errorf("%w: houdini deposits from %s", swaps.ErrUnsupportedPair, from)
	}
	fromSymbol, ok := Symbol(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, from)
	}
	toSymbol, ok := Symbol(req.To)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, req.To)
	}
	pair := Pair{From: fromSymbol, To: toSymbol}

	amount := req.Amount.Decimal()
	limits, err := p.client.Limits(ctx, pair)
	if err != nil {
		return nil, err
	}
	if !limits.Allows(amount) {
		return nil, fmt.Errorf("%w: houdini accepts %s to %s %s", swaps.ErrUnsupportedPair, limits.Min, limits.Max, from.Symbol)
	}

	quote, err := p.client.Quote(ctx, pair, amount)
	if err != nil {
		return nil, err
	}
	if !quote.AmountOut.IsPositive() {
		return nil, fmt.Errorf("houdini: empty quote for %s", pair)
	}

	return &Trade{
		client:   p.client,
		from:     from,
		pair:     pair,
		value:    new(big.Int).Set(req.Amount.Value),
		amount:   amount,
		output:   quote.AmountOut.Shift(int32(req.To.Decimals)).Floor().BigInt(),
		quoteID:  quote.QuoteID,
		receiver: req.Receiver,
	}, nil
}

// Trade is a Houdini exchange. The deposit address only exists once the
// exchange is created on assembly.
type Trade struct {
	client   *Client
	from     swaps.Currency
	pair     Pair
	value    *big.Int
	amount   decimal.Decimal
	output   *big.Int
	quoteID  string
	receiver string
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

func (t *Trade) Assemble(ctx context.Context) (*swaps.Transaction, error) {
	ex, err := t.client.CreateExchange(ctx, t.pair, t.amount, t.receiver, t.quoteID)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(ex.SenderAddress) {
		return nil, fmt.Errorf("houdini: invalid deposit address %q", ex.SenderAddress)
	}

	tx, err := swaps.TransferTx(t.from, common.HexToAddress(ex.SenderAddress), t.value)
	if err != nil {
		return nil, err
	}
	tx.Meta = map[string]string{
		"houdini_id":      ex.HoudiniID,
		"deposit_address": ex.SenderAddress,
	}
	if ex.Expires != "" {
		tx.Meta["expires"] = ex.Expires
	}
	return tx, nil
}
