package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// HTTPMetrics records duration, count and body sizes per method, route and
// status. Probe and scrape paths are skipped.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(rec.status),
				time.Since(start).Seconds(),
				max(r.ContentLength, 0),
				rec.bytes,
			)
		})
	}
}
