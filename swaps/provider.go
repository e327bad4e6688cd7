package swaps

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ProviderKind tags which fan-out set a provider belongs to.
type ProviderKind uint8

const (
	// Aggregator providers route same-chain swaps.
	Aggregator ProviderKind = iota
	// Bridge providers move value across chains.
	Bridge
)

func (k ProviderKind) String() string {
	if k == Aggregator {
		return "aggregator"
	}
	return "bridge"
}

// Trade is the opaque, provider-specific result of a quote.
type Trade interface {
	// RealizedOutput is the expected destination amount in base units.
	RealizedOutput() *big.Int

	// Assemble turns the trade into something the user can sign. It may
	// perform network calls (e.g. registering an order or deposit address).
	Assemble(ctx context.Context) (*Transaction, error)
}

// Quote is a ranked trade labelled with the provider that produced it.
type Quote struct {
	Provider string
	Kind     ProviderKind
	Trade    Trade
}

// RealizedOutput is a nil-safe shortcut to the trade output.
func (q Quote) RealizedOutput() *big.Int {
	if q.Trade == nil {
		return nil
	}
	return q.Trade.RealizedOutput()
}

// Approval is an ERC-20 allowance that must exist before Transaction executes.
type Approval struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Transaction is an unsigned source-chain transaction. Signing and
// broadcasting happen outside this module.
type Transaction struct {
	ChainID  uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	Approval *Approval

	// Same-chain bundles: calls run around the main leg by the executor.
	PreCalls  []Call
	PostCalls []Call

	// Free-form provider metadata worth showing the user (order UID,
	// deposit address, memo...).
	Meta map[string]string
}

// Provider fetches trades from one external liquidity source.
type Provider interface {
	// Name returns the provider identifier (e.g. "thorchain").
	Name() string

	// Kind says whether the provider serves same-chain or cross-chain requests.
	Kind() ProviderKind

	// Fetch prices req. Implementations must honour ctx cancellation.
	Fetch(ctx context.Context, req QuoteRequest) (Trade, error)
}

// ComposedProvider is a bridge that can execute calls on the destination
// chain as part of the transfer.
type ComposedProvider interface {
	Provider

	FetchComposed(ctx context.Context, req QuoteRequest, calls []Call, destinationGas uint64) (Trade, error)
}
