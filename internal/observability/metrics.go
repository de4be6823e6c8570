package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "polyglot"

// Metrics holds the translator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	attempts     *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	failovers    *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "llm_attempts_total",
				Help:      "LLM calls issued, by provider, model and result",
			},
			[]string{"provider", "model", "result"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "llm_call_duration_seconds",
				Help:      "Duration of single LLM calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"provider", "model"},
		),
		failovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provider_failovers_total",
				Help:      "Provider switches caused by rate limiting, by exhausted provider",
			},
			[]string{"provider"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "translation_outcomes_total",
				Help:      "Recorded translation outcomes by status",
			},
			[]string{"status"},
		),
	}

	for _, c := range []prometheus.Collector{m.attempts, m.callDuration, m.failovers, m.outcomes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveAttempt records one LLM call.
func (m *Metrics) ObserveAttempt(provider, model, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(provider, model, result).Inc()
	m.callDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

// IncFailover records a provider switch away from provider.
func (m *Metrics) IncFailover(provider string) {
	if m == nil {
		return
	}
	m.failovers.WithLabelValues(provider).Inc()
}

// IncOutcome records a persisted outcome.
func (m *Metrics) IncOutcome(status string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(status).Inc()
}
