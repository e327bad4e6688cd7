package simpleswap

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
	return "simpleswap"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Bridge
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	from := req.Amount.Currency
	if chain, ok := swaps.ChainByID(from.ChainID); !ok || !chain.EVM {
		return nil, fmt.Errorf("%w: simpleswap deposits from %s", swaps.ErrUnsupportedPair, from)
	}
	fromSymbol, ok := Symbol(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, from)
	}
	toSymbol, ok := Symbol(req.To)
	if !ok {
		return nil, fmt.Errorf("%w: %s", swaps.ErrUnsupportedPair, req.To)
	}

	amount := req.Amount.Decimal().String()
	estimated, err := p.client.GetEstimated(ctx, fromSymbol, toSymbol, amount)
	if err != nil {
		return nil, err
	}
	out, err := decimal.NewFromString(estimated)
	if err != nil {
		return nil, fmt.Errorf("simpleswap: invalid estimate %q: %w", estimated, err)
	}

	return &Trade{
		client:     p.client,
		from:       from,
		fromSymbol: fromSymbol,
		toSymbol:   toSymbol,
		amount:     new(big.Int).Set(req.Amount.Value),
		amountStr:  amount,
		output:     out.Shift(int32(req.To.Decimals)).Floor().BigInt(),
		receiver:   req.Receiver,
		refund:     req.Refund(),
	}, nil
}

// Trade is a floating-rate SimpleSwap exchange. The exchange itself, and
// with it the deposit address, is only created on assembly.
type Trade struct {
	client     *Client
	from       swaps.Currency
	fromSymbol string
	toSymbol   string
	amount     *big.Int
	amountStr  string
	output     *big.Int
	receiver   string
	refund     string
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

func (t *Trade) Assemble(ctx context.Context) (*swaps.Transaction, error) {
	ex, err := t.client.CreateExchange(ctx, t.fromSymbol, t.toSymbol, t.amountStr, t.receiver, t.refund)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(ex.AddressFrom) {
		return nil, fmt.Errorf("simpleswap: invalid deposit address %q", ex.AddressFrom)
	}

	tx, err := swaps.TransferTx(t.from, common.HexToAddress(ex.AddressFrom), t.amount)
	if err != nil {
		return nil, err
	}
	tx.Meta = map[string]string{
		"exchange_id":     ex.ID,
		"deposit_address": ex.AddressFrom,
	}
	return tx, nil
}
