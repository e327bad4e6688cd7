package nearintents

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/resolver"
	"github.com/RaghavSood/quoteflow/swaps"
)

const quoteDeadline = 60 * time.Minute

// API is the subset of the 1click client the provider uses.
type API interface {
	Tokens(ctx context.Context) ([]Token, error)
	Quote(ctx context.Context, p QuoteParams) (*Quote, error)
}

type Provider struct {
	api    API
	tokens *resolver.Store[[]Token]
	now    func() time.Time
}

func NewProvider(api API) *Provider {
	return &Provider{
		api:    api,
		tokens: resolver.NewStore[[]Token](api.Tokens, tokenTTL),
		now:    time.Now,
	}
}

func (p *Provider) Name() string {
	return "nearintents"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Bridge
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	from := req.Amount.Currency
	if chain, ok := swaps.ChainByID(from.ChainID); !ok || !chain.EVM {
		return nil, fmt.Errorf("%w: nearintents deposits from %s", swaps.ErrUnsupportedPair, from)
	}

	tokens, err := p.tokens.GetOrLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	idx := newTokenIndex(tokens)
	origin, ok := idx.assetID(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s not listed", swaps.ErrUnsupportedPair, from)
	}
	dest, ok := idx.assetID(req.To)
	if !ok {
		return nil, fmt.Errorf("%w: %s not listed", swaps.ErrUnsupportedPair, req.To)
	}

	q, err := p.api.Quote(ctx, QuoteParams{
		OriginAsset:      origin,
		DestinationAsset: dest,
		Amount:           req.Amount.Value.String(),
		RefundTo:         req.Refund(),
		Recipient:        req.Receiver,
		SlippageBps:      req.SlippageBps(),
		Deadline:         p.now().Add(quoteDeadline),
	})
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(q.DepositAddress) {
		return nil, fmt.Errorf("nearintents: invalid deposit address %q", q.DepositAddress)
	}
	out, ok := new(big.Int).SetString(q.AmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("nearintents: invalid amountOut %q", q.AmountOut)
	}

	return &Trade{
		from:    from,
		amount:  new(big.Int).Set(req.Amount.Value),
		output:  out,
		deposit: common.HexToAddress(q.DepositAddress),
		id:      q.CorrelationID,
	}, nil
}

// Trade sends the input to a 1click deposit address.
type Trade struct {
	from    swaps.Currency
	amount  *big.Int
	output  *big.Int
	deposit common.Address
	id      string
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

func (t *Trade) DepositAddress() common.Address { return t.deposit }

func (t *Trade) Assemble(context.Context) (*swaps.Transaction, error) {
	tx, err := swaps.TransferTx(t.from, t.deposit, t.amount)
	if err != nil {
		return nil, err
	}
	tx.Meta = map[string]string{
		"deposit_address": t.deposit.Hex(),
		"correlation_id":  t.id,
	}
	return tx, nil
}
