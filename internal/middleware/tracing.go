package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request with W3C trace context
// propagation. Spans are named by route ("POST /search",
// "GET /personas/{id}") to match the metric labels; probe and scrape paths
// are not traced.
//
// Place it outermost so RequestID and Logging run inside the span.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	spanName := func(_ string, r *http.Request) string {
		return r.Method + " " + normalizePath(r.URL.Path)
	}
	traced := func(r *http.Request) bool {
		return !probePaths[r.URL.Path]
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(spanName),
			otelhttp.WithFilter(traced),
		)
	}
}

// TraceID returns the active trace id of the request, or "".
func TraceID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// SpanID returns the active span id of the request, or "".
func SpanID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}
