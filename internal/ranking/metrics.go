package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names for reranking.
const (
	MetricRerankDuration   = "rerank_duration_seconds"
	MetricRerankCandidates = "rerank_candidates"
	MetricRerankPersona    = "rerank_persona_requests_total"
	MetricRerankErrors     = "rerank_errors_total"
)

// Metrics contains Prometheus metrics for the reranker.
// All operations are thread-safe. A nil *Metrics records nothing.
type Metrics struct {
	duration   prometheus.Histogram
	candidates prometheus.Histogram
	persona    *prometheus.CounterVec
	errors     *prometheus.CounterVec
}

// NewMetrics creates reranker metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRerankDuration,
				Help:    "Time spent reranking one candidate set in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRerankCandidates,
				Help:    "Number of candidates per rerank call",
				Buckets: []float64{0, 1, 10, 25, 50, 100, 250},
			},
		),
		persona: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRerankPersona,
				Help: "Total number of rerank calls by persona (\"none\" for baseline only)",
			},
			[]string{"persona"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRerankErrors,
				Help: "Total number of rejected rerank calls by kind",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.duration, m.candidates, m.persona, m.errors} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(personaID string, candidates int, seconds float64) {
	if m == nil {
		return
	}
	if personaID == "" {
		personaID = "none"
	}
	m.duration.Observe(seconds)
	m.candidates.Observe(float64(candidates))
	m.persona.WithLabelValues(personaID).Inc()
}

// incError counts a rejected call. kind is "validation" or "unknown_persona";
// persona ids are never used as labels here so bad input cannot grow cardinality.
func (m *Metrics) incError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}
