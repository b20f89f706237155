package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/personas/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))

	requests := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"x"}`)),
		httptest.NewRequest(http.MethodGet, "/personas/ghost", nil),
		httptest.NewRequest(http.MethodGet, "/personas/other", nil),
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
	}
	for _, req := range requests {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := counterValue(t, m.httpRequests.WithLabelValues("POST", "/search", "200")); got != 1 {
		t.Errorf("search count = %v", got)
	}
	if got := counterValue(t, m.httpRequests.WithLabelValues("GET", "/personas/{id}", "404")); got != 2 {
		t.Errorf("persona 404 count = %v, want 2 under one label", got)
	}

	total := 0
	for _, s := range family(t, reg, MetricHTTPRequestsTotal).GetMetric() {
		total += int(s.GetCounter().GetValue())
		if p := labelValue(s, "path"); probePaths[p] {
			t.Errorf("probe path %s recorded", p)
		}
	}
	if total != 3 {
		t.Errorf("recorded %d requests, want 3", total)
	}

	sizes := family(t, reg, MetricHTTPRequestSizeBytes).GetMetric()
	for _, s := range sizes {
		if labelValue(s, "path") == "/search" && s.GetHistogram().GetSampleSum() != float64(len(`{"query":"x"}`)) {
			t.Errorf("request size sum = %v", s.GetHistogram().GetSampleSum())
		}
	}
}
