package engine

import (
	"log/slog"
	"time"

	"github.com/RaghavSood/quoteflow/metrics"
	"github.com/RaghavSood/quoteflow/slippage"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultRefreshCeiling  = 2 * time.Minute
)

// Option configures an Engine.
type Option func(*Engine)

// WithRefreshInterval sets how long a successful result stays fresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithRefreshCeiling bounds continuous unattended refreshing. Zero disables
// the ceiling.
func WithRefreshCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.ceiling = d
		}
	}
}

// WithClock overrides time.Now for state timestamps and ceiling checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder persists every completed fetch.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithCurrencies validates and normalizes request currencies before
// fingerprinting. Unknown currencies are treated as invalid input.
func WithCurrencies(c CurrencyLookup) Option {
	return func(e *Engine) {
		e.currencies = c
	}
}

// WithValidator checks the selected quote against the request's MinOutput.
func WithValidator(v *slippage.Validator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

func WithMetrics(m *metrics.QuoteMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSessionID labels logs, records and views. Defaults to a random UUID.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}
