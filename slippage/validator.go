// Package slippage checks realized quote output against a required minimum
// and maintains the safety buffer used when solving for a target output.
package slippage

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	DefaultBufferBps = 50
	DefaultStepBps   = 25
	DefaultMaxBps    = 300
)

var bpsScale = decimal.NewFromInt(10_000)

// Config bounds the buffer, in basis points.
type Config struct {
	InitialBps int64
	StepBps    int64
	MaxBps     int64
}

// Warning is advisory: the quote stays displayable.
type Warning struct {
	Realized     *big.Int
	Required     *big.Int
	ShortfallBps int64
	BufferBps    int64 // buffer after widening

	// SuggestedInput is the buffered input estimated to cover Required, in
	// source base units. Nil when unknown.
	SuggestedInput *big.Int
}

func (w *Warning) String() string {
	return fmt.Sprintf("output is %d bps below the required amount; buffer widened to %d bps",
		w.ShortfallBps, w.BufferBps)
}

// Validator is safe for concurrent use.
type Validator struct {
	mu        sync.Mutex
	bufferBps int64
	initial   int64
	step      int64
	max       int64
}

// New returns a validator; zero fields fall back to the defaults.
func New(cfg Config) *Validator {
	if cfg.InitialBps <= 0 {
		cfg.InitialBps = DefaultBufferBps
	}
	if cfg.StepBps <= 0 {
		cfg.StepBps = DefaultStepBps
	}
	if cfg.MaxBps <= 0 {
		cfg.MaxBps = DefaultMaxBps
	}
	if cfg.InitialBps > cfg.MaxBps {
		cfg.InitialBps = cfg.MaxBps
	}
	return &Validator{
		bufferBps: cfg.InitialBps,
		initial:   cfg.InitialBps,
		step:      cfg.StepBps,
		max:       cfg.MaxBps,
	}
}

// Check compares realized output with the required amount. It returns nil
// when the shortfall fits in the current buffer. Otherwise the buffer grows
// to shortfall+step, capped at the maximum, and a Warning is returned.
func (v *Validator) Check(realized, required *big.Int) *Warning {
	if realized == nil || required == nil || required.Sign() <= 0 {
		return nil
	}
	if realized.Cmp(required) >= 0 {
		return nil
	}

	req := decimal.NewFromBigInt(required, 0)
	shortfall := req.Sub(decimal.NewFromBigInt(realized, 0)).
		Div(req).
		Mul(bpsScale).
		Ceil().
		IntPart()

	v.mu.Lock()
	defer v.mu.Unlock()

	if shortfall <= v.bufferBps {
		return nil
	}
	widened := shortfall + v.step
	if widened > v.max {
		widened = v.max
	}
	if widened > v.bufferBps {
		v.bufferBps = widened
	}
	return &Warning{
		Realized:     new(big.Int).Set(realized),
		Required:     new(big.Int).Set(required),
		ShortfallBps: shortfall,
		BufferBps:    v.bufferBps,
	}
}

// BufferBps returns the current buffer in basis points.
func (v *Validator) BufferBps() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bufferBps
}

// Buffer returns the current buffer as a fraction.
func (v *Validator) Buffer() decimal.Decimal {
	return decimal.NewFromInt(v.BufferBps()).Div(bpsScale)
}

// Pad grows an estimated input by the buffer, rounding up. Reverse-quote
// calculators use it so the padded input still covers the target after
// execution-time movement.
func (v *Validator) Pad(amount *big.Int) *big.Int {
	if amount == nil {
		return nil
	}
	factor := decimal.NewFromInt(1).Add(v.Buffer())
	return decimal.NewFromBigInt(amount, 0).Mul(factor).Ceil().BigInt()
}

// Estimate scales input by required/realized, rounding up, and pads the
// result by the buffer. It returns nil when realized is not positive.
func (v *Validator) Estimate(input, realized, required *big.Int) *big.Int {
	if input == nil || realized == nil || required == nil || realized.Sign() <= 0 {
		return nil
	}
	num := new(big.Int).Mul(input, required)
	est, rem := new(big.Int).QuoRem(num, realized, new(big.Int))
	if rem.Sign() > 0 {
		est.Add(est, big.NewInt(1))
	}
	return v.Pad(est)
}

// Reset restores the initial buffer.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bufferBps = v.initial
}
