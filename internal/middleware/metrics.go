package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names exported by the middleware chain.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricAdminAuthFailures     = "admin_auth_failures_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

var (
	limitLabels = []string{"limit", "key_kind"}
	httpLabels  = []string{"method", "path", "status"}
	// 100 B up to 10 MB; bodies are capped well below that.
	sizeBuckets = prometheus.ExponentialBuckets(100, 10, 6)
)

// Metrics holds the middleware collectors. Create with NewMetrics and
// register once per registry.
type Metrics struct {
	limitChecks   *prometheus.CounterVec
	limitBlocked  *prometheus.CounterVec
	limitRedisErr prometheus.Counter
	adminRejected *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpReqSize   *prometheus.HistogramVec
	httpRespSize  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		limitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitRequests,
			Help: "Requests checked against a rate limit, by limit and key kind.",
		}, limitLabels),
		limitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBlocked,
			Help: "Requests rejected with 429, by limit and key kind.",
		}, limitLabels),
		limitRedisErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; each one let the request through.",
		}),
		adminRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAdminAuthFailures,
			Help: "Rejected admin requests by reason.",
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, httpLabels),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests served.",
		}, httpLabels),
		httpReqSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestSizeBytes,
			Help:    "Declared HTTP request body size in bytes.",
			Buckets: sizeBuckets,
		}, httpLabels),
		httpRespSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response body size in bytes.",
			Buckets: sizeBuckets,
		}, httpLabels),
	}
}

// Register adds every collector to reg, stopping at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) IncRateLimitRequests(limit, keyKind string) {
	m.limitChecks.WithLabelValues(limit, keyKind).Inc()
}

func (m *Metrics) IncRateLimitBlocked(limit, keyKind string) {
	m.limitBlocked.WithLabelValues(limit, keyKind).Inc()
}

func (m *Metrics) IncRateLimitRedisErrors() {
	m.limitRedisErr.Inc()
}

// IncAdminAuthFailures counts a rejected admin request. reason is one of
// missing_token, invalid_token, expired_token or forbidden.
func (m *Metrics) IncAdminAuthFailures(reason string) {
	m.adminRejected.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest records one served request. path must already be a
// route label from normalizePath.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, seconds float64, reqBytes, respBytes int64) {
	lv := []string{method, path, status}
	m.httpDuration.WithLabelValues(lv...).Observe(seconds)
	m.httpRequests.WithLabelValues(lv...).Inc()
	m.httpReqSize.WithLabelValues(lv...).Observe(float64(reqBytes))
	m.httpRespSize.WithLabelValues(lv...).Observe(float64(respBytes))
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.limitChecks, m.limitBlocked, m.limitRedisErr, m.adminRejected,
		m.httpDuration, m.httpRequests, m.httpReqSize, m.httpRespSize,
	}
}
