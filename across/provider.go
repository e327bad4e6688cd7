package across

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/quoteflow/swaps"
)

const depositABIJSON = `[{
	"inputs": [
		{"name": "depositor", "type": "address"},
		{"name": "recipient", "type": "address"},
		{"name": "inputToken", "type": "address"},
		{"name": "outputToken", "type": "address"},
		{"name": "inputAmount", "type": "uint256"},
		{"name": "outputAmount", "type": "uint256"},
		{"name": "destinationChainId", "type": "uint256"},
		{"name": "exclusiveRelayer", "type": "address"},
		{"name": "quoteTimestamp", "type": "uint32"},
		{"name": "fillDeadline", "type": "uint32"},
		{"name": "exclusivityDeadline", "type": "uint32"},
		{"name": "message", "type": "bytes"}
	],
	"name": "depositV3",
	"outputs": [],
	"stateMutability": "payable",
	"type": "function"
}]`

var spokePoolABI = swaps.MustParseABI(depositABIJSON)

const depositGas = 150_000

// wrappedNative lists chains where native ETH deposits are accepted by
// passing WETH as the input token along with msg.value.
var wrappedNative = map[uint64]common.Address{
	swaps.ChainEthereum: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	swaps.ChainOptimism: common.HexToAddress("0x4200000000000000000000000000000000000006"),
	swaps.ChainBase:     common.HexToAddress("0x4200000000000000000000000000000000000006"),
	swaps.ChainArbitrum: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
}

type Provider struct {
	client *Client
}

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "across"
}

func (p *Provider) Kind() swaps.ProviderKind {
	return swaps.Bridge
}

func (p *Provider) Fetch(ctx context.Context, req swaps.QuoteRequest) (swaps.Trade, error) {
	return p.fetch(ctx, req, nil, 0)
}

// FetchComposed quotes a deposit whose destination leg runs calls through
// the multicall handler. Leftover funds fall back to the receiver.
func (p *Provider) FetchComposed(ctx context.Context, req swaps.QuoteRequest, calls []swaps.Call, destinationGas uint64) (swaps.Trade, error) {
	if len(calls) == 0 {
		return nil, errors.New("composed fetch without calls")
	}
	return p.fetch(ctx, req, calls, destinationGas)
}

func tokenFor(c swaps.Currency) (common.Address, error) {
	if chain, ok := swaps.ChainByID(c.ChainID); !ok || !chain.EVM {
		return common.Address{}, fmt.Errorf("%w: across does not serve %s", swaps.ErrUnsupportedPair, c)
	}
	if !c.IsNative() {
		return c.EVMAddress(), nil
	}
	w, ok := wrappedNative[c.ChainID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: native %s", swaps.ErrUnsupportedPair, c)
	}
	return w, nil
}

func (p *Provider) fetch(ctx context.Context, req swaps.QuoteRequest, calls []swaps.Call, destinationGas uint64) (swaps.Trade, error) {
	from, to := req.Amount.Currency, req.To
	inputToken, err := tokenFor(from)
	if err != nil {
		return nil, err
	}
	outputToken, err := tokenFor(to)
	if err != nil {
		return nil, err
	}
	if !swaps.IsEVMAddress(req.Receiver) {
		return nil, fmt.Errorf("%w: receiver %q is not an EVM address", swaps.ErrInvalidInput, req.Receiver)
	}
	depositor := req.Refund()
	if !swaps.IsEVMAddress(depositor) {
		return nil, fmt.Errorf("%w: depositor %q is not an EVM address", swaps.ErrInvalidInput, depositor)
	}

	recipient := common.HexToAddress(req.Receiver)
	var message []byte
	if len(calls) > 0 {
		message, err = EncodeMessage(calls, recipient)
		if err != nil {
			return nil, err
		}
		recipient = MulticallHandler
	}

	fees, err := p.client.SuggestedFees(ctx, FeeParams{
		InputToken:         inputToken.Hex(),
		OutputToken:        outputToken.Hex(),
		OriginChainID:      from.ChainID,
		DestinationChainID: to.ChainID,
		Amount:             req.Amount.Value.String(),
		Depositor:          common.HexToAddress(depositor).Hex(),
		Recipient:          recipient.Hex(),
		Message:            message,
	})
	if err != nil {
		return nil, err
	}
	if fees.IsAmountTooLow {
		return nil, fmt.Errorf("across: amount %s below minimum", req.Amount)
	}
	if !common.IsHexAddress(fees.SpokePoolAddress) {
		return nil, fmt.Errorf("across: invalid spoke pool %q", fees.SpokePoolAddress)
	}
	out, ok := new(big.Int).SetString(fees.OutputAmount, 10)
	if !ok || out.Sign() <= 0 {
		return nil, fmt.Errorf("across: invalid output amount %q", fees.OutputAmount)
	}

	return &Trade{
		req:            req,
		depositor:      common.HexToAddress(depositor),
		recipient:      recipient,
		inputToken:     inputToken,
		outputToken:    outputToken,
		output:         out,
		fees:           fees,
		message:        message,
		destinationGas: destinationGas,
	}, nil
}

type Trade struct {
	req            swaps.QuoteRequest
	depositor      common.Address
	recipient      common.Address
	inputToken     common.Address
	outputToken    common.Address
	output         *big.Int
	fees           *SuggestedFees
	message        []byte
	destinationGas uint64
}

func (t *Trade) RealizedOutput() *big.Int { return t.output }

// Assemble encodes depositV3 on the origin SpokePool. The output amount is
// the quoted one: Across fills exactly that amount or refunds.
func (t *Trade) Assemble(context.Context) (*swaps.Transaction, error) {
	amount := t.req.Amount.Value
	data, err := spokePoolABI.Pack("depositV3",
		t.depositor,
		t.recipient,
		t.inputToken,
		t.outputToken,
		amount,
		t.output,
		new(big.Int).SetUint64(t.req.To.ChainID),
		common.HexToAddress(t.fees.ExclusiveRelayer),
		uint32(t.fees.Timestamp),
		uint32(t.fees.FillDeadline),
		uint32(t.fees.ExclusivityDeadline),
		t.message,
	)
	if err != nil {
		return nil, fmt.Errorf("encoding depositV3: %w", err)
	}

	spokePool := common.HexToAddress(t.fees.SpokePoolAddress)
	tx := &swaps.Transaction{
		ChainID: t.req.Amount.Currency.ChainID,
		To:      spokePool,
		Value:   new(big.Int),
		Data:    data,
		Gas:     depositGas,
		Meta: map[string]string{
			"spoke_pool":    spokePool.Hex(),
			"relay_fee":     t.fees.TotalRelayFee.Total,
			"fill_deadline": strconv.FormatUint(uint64(t.fees.FillDeadline), 10),
		},
	}
	if t.destinationGas > 0 {
		tx.Meta["destination_gas"] = strconv.FormatUint(t.destinationGas, 10)
	}
	if t.req.Amount.Currency.IsNative() {
		tx.Value = new(big.Int).Set(amount)
	} else {
		tx.Approval = &swaps.Approval{Token: t.inputToken, Spender: spokePool, Amount: new(big.Int).Set(amount)}
	}
	return tx, nil
}
