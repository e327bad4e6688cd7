package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics tracks quote orchestration. All methods are safe on a nil
// receiver so components can run without metrics.
type QuoteMetrics struct {
	fetches          *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	ceilingTrips     prometheus.Counter
	slippageWarnings prometheus.Counter
	sessions         prometheus.Gauge
}

var (
	quotesOnce     sync.Once
	quotesRegistry *QuoteMetrics
)

// Quotes returns the process-wide collectors, registering them on first use.
func Quotes() *QuoteMetrics {
	quotesOnce.Do(func() {
		quotesRegistry = &QuoteMetrics{
			fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quoteflow_fetches_total",
				Help: "Fan-outs started, by kind (new or refresh).",
			}, []string{"kind"}),
			outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quoteflow_fetch_outcomes_total",
				Help: "Completed fan-outs by outcome.",
			}, []string{"outcome"}),
			providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "quoteflow_provider_requests_total",
				Help: "Provider quote calls by provider and outcome.",
			}, []string{"provider", "outcome"}),
			providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "quoteflow_provider_latency_seconds",
				Help:    "Provider quote latency.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			}, []string{"provider"}),
			ceilingTrips: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quoteflow_refresh_ceiling_trips_total",
				Help: "Times auto-refresh stopped after reaching the ceiling.",
			}),
			slippageWarnings: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "quoteflow_slippage_warnings_total",
				Help: "Quotes whose output fell short of the required minimum beyond the buffer.",
			}),
			sessions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "quoteflow_active_sessions",
				Help: "Engine sessions currently running.",
			}),
		}
		prometheus.MustRegister(
			quotesRegistry.fetches,
			quotesRegistry.outcomes,
			quotesRegistry.providerRequests,
			quotesRegistry.providerLatency,
			quotesRegistry.ceilingTrips,
			quotesRegistry.slippageWarnings,
			quotesRegistry.sessions,
		)
	})
	return quotesRegistry
}

func (m *QuoteMetrics) ObserveFetch(refresh bool) {
	if m == nil {
		return
	}
	kind := "new"
	if refresh {
		kind = "refresh"
	}
	m.fetches.WithLabelValues(kind).Inc()
}

func (m *QuoteMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *QuoteMetrics) ObserveProvider(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *QuoteMetrics) ObserveCeilingTrip() {
	if m == nil {
		return
	}
	m.ceilingTrips.Inc()
}

func (m *QuoteMetrics) ObserveSlippageWarning() {
	if m == nil {
		return
	}
	m.slippageWarnings.Inc()
}

func (m *QuoteMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *QuoteMetrics) SessionStopped() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// FetchCounterVec exposes the fetch counter for tests.
func (m *QuoteMetrics) FetchCounterVec() *prometheus.CounterVec { return m.fetches }

// OutcomeCounterVec exposes the outcome counter for tests.
func (m *QuoteMetrics) OutcomeCounterVec() *prometheus.CounterVec { return m.outcomes }

// ProviderCounterVec exposes the provider request counter for tests.
func (m *QuoteMetrics) ProviderCounterVec() *prometheus.CounterVec { return m.providerRequests }

// CeilingTripCounter exposes the ceiling counter for tests.
func (m *QuoteMetrics) CeilingTripCounter() prometheus.Counter { return m.ceilingTrips }
