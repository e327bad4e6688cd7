package cowswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/RaghavSood/quoteflow/swaps"
)

const settlementABIJSON = `[{"inputs":[{"name":"orderUid","type":"bytes"},{"name":"signed","type":"bool"}],"name":"setPreSignature","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var settlementABI = swaps.MustParseABI(settlementABIJSON)

// preSignatureGas covers setPreSignature with headroom.
const preSignatureGas = 80_000

type Provider struct {
	client *Client
	now    func() time.Time
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Name() string {
	return "cowswap"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Aggregator
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	from := req.Amount.Currency
	if !Supported(from.ChainID) {
		return nil, fmt.Errorf("%w: chain %d", swaps.ErrUnsupportedPair, from.ChainID)
	}
	// Selling native gas needs the eth-flow contract, which presign orders
	// cannot use.
	if from.IsNative() {
		return nil, fmt.Errorf("%w: cow cannot sell native %s", swaps.ErrUnsupportedPair, from.Symbol)
	}
	if !swaps.IsEVMAddress(req.Receiver) {
		return nil, fmt.Errorf("%w: receiver %q is not an EVM address", swaps.ErrInvalidInput, req.Receiver)
	}
	owner := req.Refund()
	if !swaps.IsEVMAddress(owner) {
		return nil, fmt.Errorf("%w: owner %q is not an EVM address", swaps.ErrInvalidInput, owner)
	}

	buyToken := NativeToken
	if !req.To.IsNative() {
		buyToken = req.To.EVMAddress().Hex()
	}

	qr, err := p.client.GetQuote(ctx, from.ChainID, QuoteRequest{
		SellToken:           from.EVMAddress().Hex(),
		BuyToken:            buyToken,
		Receiver:            common.HexToAddress(req.Receiver).Hex(),
		SellAmountBeforeFee: req.Amount.Value.String(),
		Kind:                "sell",
		From:                common.HexToAddress(owner).Hex(),
		SigningScheme:       "presign",
	})
	if err != nil {
		return nil, err
	}

	buy, ok := new(big.Int).SetString(qr.Quote.BuyAmount, 10)
	if !ok {
		return nil, fmt.Errorf("cow: invalid buyAmount %q", qr.Quote.BuyAmount)
	}
	sell, ok := new(big.Int).SetString(qr.Quote.SellAmount, 10)
	if !ok {
		return nil, fmt.Errorf("cow: invalid sellAmount %q", qr.Quote.SellAmount)
	}
	fee, ok := new(big.Int).SetString(qr.Quote.FeeAmount, 10)
	if !ok {
		fee = new(big.Int)
	}

	return &Trade{
		client:  p.client,
		chainID: from.ChainID,
		owner:   common.HexToAddress(owner),
		result:  qr,
		sell:    new(big.Int).Add(sell, fee),
		output:  buy,
		minOut:  req.MinimumOut(buy),
		now:     p.now,
	}, nil
}

// Trade is a priced CoW order that has not been submitted yet.
type Trade struct {
	client  *Client
	chainID uint64
	owner   common.Address
	result  *QuoteResult
	sell    *big.Int
	output  *big.Int
	minOut  *big.Int
	now     func() time.Time
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

// Assemble submits the order with the presign scheme and returns the
// settlement call that activates it.
func (t *Trade) Assemble(ctx context.Context) (*swaps.Transaction, error) {
	q := t.result.Quote
	if q.ValidTo != 0 && int64(q.ValidTo) <= t.now().Unix() {
		return nil, fmt.Errorf("cow quote expired at %d", q.ValidTo)
	}

	uid, err := t.client.SubmitOrder(ctx, t.chainID, OrderSubmission{
		SellToken:         q.SellToken,
		BuyToken:          q.BuyToken,
		Receiver:          q.Receiver,
		SellAmount:        t.sell.String(),
		BuyAmount:         t.minOut.String(),
		ValidTo:           q.ValidTo,
		AppData:           q.AppData,
		AppDataHash:       q.AppDataHash,
		FeeAmount:         "0",
		Kind:              q.Kind,
		PartiallyFillable: q.PartiallyFillable,
		SellTokenBalance:  q.SellTokenBalance,
		BuyTokenBalance:   q.BuyTokenBalance,
		SigningScheme:     "presign",
		Signature:         t.owner.Hex(),
		From:              t.owner.Hex(),
		QuoteID:           t.result.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("submitting order: %w", err)
	}

	uidBytes, err := hexutil.Decode(uid)
	if err != nil {
		return nil, fmt.Errorf("decoding order uid %q: %w", uid, err)
	}
	data, err := settlementABI.Pack("setPreSignature", uidBytes, true)
	if err != nil {
		return nil, fmt.Errorf("encoding setPreSignature: %w", err)
	}

	return &swaps.Transaction{
		ChainID: t.chainID,
		To:      common.HexToAddress(SettlementContract),
		Value:   new(big.Int),
		Data:    data,
		Gas:     preSignatureGas,
		Approval: &swaps.Approval{
			Token:   common.HexToAddress(q.SellToken),
			Spender: common.HexToAddress(VaultRelayer),
			Amount:  new(big.Int).Set(t.sell),
		},
		Meta: map[string]string{
			"order_uid": uid,
			"min_out":   t.minOut.String(),
		},
	}, nil
}
