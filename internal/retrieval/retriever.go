// Package retrieval is the boundary to the full-text engine that produces
// baseline candidates, plus a bleve-backed implementation of it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrRetrieval wraps every failure of the retrieval engine, including
// cancellation and timeouts. The underlying cause stays reachable through
// errors.Is, so context.DeadlineExceeded can be told apart.
var ErrRetrieval = errors.New("retrieval failed")

// Method selects the baseline scoring model.
type Method string

// Supported methods.
const (
	MethodBM25        Method = "bm25"
	MethodQLDirichlet Method = "ql_dirichlet"
)

// Methods returns every supported method.
func Methods() []Method {
	return []Method{MethodBM25, MethodQLDirichlet}
}

// ParseMethod validates a method name.
func ParseMethod(name string) (Method, bool) {
	switch m := Method(name); m {
	case MethodBM25, MethodQLDirichlet:
		return m, true
	}
	return "", false
}

// Retriever returns up to k candidates for a query, best first, with their
// raw baseline scores. Implementations honor ctx cancellation and return
// errors wrapping ErrRetrieval. No retries happen here.
type Retriever interface {
	Retrieve(ctx context.Context, query string, method Method, k int) ([]ranking.RawCandidate, error)
}

// Metric names for retrieval.
const (
	MetricRetrievalDuration = "retrieval_duration_seconds"
	MetricRetrievalErrors   = "retrieval_errors_total"
)

// Metrics contains Prometheus metrics for retrieval calls.
type Metrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewMetrics creates retrieval metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRetrievalDuration,
				Help:    "Retrieval call duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1.0},
			},
			[]string{"method"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRetrievalErrors,
				Help: "Total number of failed retrieval calls by method and kind (timeout, canceled, error)",
			},
			[]string{"method", "kind"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.duration, m.errors} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Instrument wraps r so every call is timed and failures are counted.
func Instrument(r Retriever, m *Metrics) Retriever {
	if m == nil {
		return r
	}
	return &instrumented{next: r, metrics: m}
}

type instrumented struct {
	next    Retriever
	metrics *Metrics
}

func (i *instrumented) Retrieve(ctx context.Context, query string, method Method, k int) ([]ranking.RawCandidate, error) {
	start := time.Now()
	out, err := i.next.Retrieve(ctx, query, method, k)
	i.metrics.duration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	if err != nil {
		i.metrics.errors.WithLabelValues(string(method), errorKind(err)).Inc()
	}
	return out, err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// wrap attaches ErrRetrieval to err, preferring the context's error when the
// call was cut short so callers can distinguish timeouts.
func wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrRetrieval, op, ctxErr)
	}
	return fmt.Errorf("%w: %s: %w", ErrRetrieval, op, err)
}
