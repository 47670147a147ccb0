package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricScoreRecomputeTotal           = "score_recompute_total"
	MetricScoreRecomputeErrors          = "score_recompute_errors_total"
	MetricScoreRecomputeDuration        = "score_recompute_duration_seconds"
	MetricScoreLastRecomputeTimestamp   = "score_last_recompute_timestamp"
	MetricScoreLastRecomputePersonCount = "score_last_recompute_person_count"
)

// Metrics contains Prometheus metrics for score recomputation.
// All operations are thread-safe.
type Metrics struct {
	recomputeTotal           prometheus.Counter
	recomputeErrors          prometheus.Counter
	recomputeDuration        prometheus.Histogram
	lastRecomputeTimestamp   prometheus.Gauge
	lastRecomputePersonCount prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricScoreRecomputeTotal,
			Help: "Total number of score recomputation batches",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricScoreRecomputeErrors,
			Help: "Total number of per-person score recomputation errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricScoreRecomputeDuration,
			Help:    "Histogram of score recomputation batch duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastRecomputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricScoreLastRecomputeTimestamp,
			Help: "Unix timestamp of the last score recomputation batch",
		}),
		lastRecomputePersonCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricScoreLastRecomputePersonCount,
			Help: "Number of people processed in the last score recomputation batch",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputePersonCount,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecomputeTotal increments the recompute total counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records a recompute duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// SetLastRecomputeTimestamp sets the last recompute timestamp gauge.
func (m *Metrics) SetLastRecomputeTimestamp(timestamp float64) {
	m.lastRecomputeTimestamp.Set(timestamp)
}

// SetLastRecomputePersonCount sets the last recompute person count gauge.
func (m *Metrics) SetLastRecomputePersonCount(count float64) {
	m.lastRecomputePersonCount.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputePersonCount,
	}
}
