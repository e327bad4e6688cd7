package swaps

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// QuoteRequest is an immutable description of what the user wants to trade.
// Two requests are the same logical request when their fingerprint keys match.
type QuoteRequest struct {
	Amount   Amount
	To       Currency
	Slippage decimal.Decimal // fraction, 0.005 == 0.5%
	Receiver string

	// Sender funds the trade and receives refunds. Not part of the fingerprint.
	Sender string

	PreCalls       []Call
	PostCalls      []Call
	DestinationGas uint64

	// MinOutput is the required destination amount when the request was
	// derived by solving for a target output. Nil otherwise.
	MinOutput *big.Int
}

// Validate rejects requests that must never reach a provider.
func (r QuoteRequest) Validate() error {
	if r.Amount.Currency.IsZero() {
		return fmt.Errorf("%w: missing source currency", ErrInvalidInput)
	}
	if r.To.IsZero() {
		return fmt.Errorf("%w: missing destination currency", ErrInvalidInput)
	}
	if r.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if r.Slippage.IsNegative() || r.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: slippage %s out of range", ErrInvalidInput, r.Slippage)
	}
	if r.Amount.Currency.ID() == r.To.ID() {
		return fmt.Errorf("%w: source and destination are the same currency", ErrInvalidInput)
	}
	return nil
}

// SameChain reports whether source and destination share a chain.
func (r QuoteRequest) SameChain() bool {
	return r.Amount.Currency.ChainID == r.To.ChainID
}

// HasCalls reports whether any pre or post calls are attached.
func (r QuoteRequest) HasCalls() bool {
	return len(r.PreCalls) > 0 || len(r.PostCalls) > 0
}

// Calls returns the attached calls in execution order.
func (r QuoteRequest) Calls() []Call {
	out := make([]Call, 0, len(r.PreCalls)+len(r.PostCalls))
	for _, c := range r.PreCalls {
		c.Phase = PhasePre
		out = append(out, c)
	}
	for _, c := range r.PostCalls {
		c.Phase = PhasePost
		out = append(out, c)
	}
	return out
}

// SlippageBps returns the slippage tolerance in basis points, rounded down.
func (r QuoteRequest) SlippageBps() int64 {
	return r.Slippage.Shift(4).IntPart()
}

// MinimumOut applies the slippage tolerance to an expected output.
func (r QuoteRequest) MinimumOut(expected *big.Int) *big.Int {
	if expected == nil {
		return new(big.Int)
	}
	keep := decimal.NewFromInt(1).Sub(r.Slippage)
	return decimal.NewFromBigInt(expected, 0).Mul(keep).Floor().BigInt()
}

// Refund returns the address refunds should go to.
func (r QuoteRequest) Refund() string {
	if r.Sender != "" {
		return r.Sender
	}
	return r.Receiver
}
