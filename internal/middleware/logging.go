package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// NewLogger returns the process logger: JSON at info level in production,
// text at debug level elsewhere.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Logging writes one "request completed" record per request with method,
// path, status, latency_ms, size and, when present, request_id, trace_id,
// span_id, subject and error_code. 5xx log at error level, 4xx at warn.
//
// A panicking handler produces no record.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			attrs := make([]slog.Attr, 0, 10)
			attrs = append(attrs,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int64("size", rec.bytes),
			)
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if id := TraceID(r); id != "" {
				attrs = append(attrs, slog.String("trace_id", id), slog.String("span_id", SpanID(r)))
			}
			if sub := GetSubject(ctx); sub != "" {
				attrs = append(attrs, slog.String("subject", sub))
			}
			if rec.status >= 400 {
				code := rec.errorCode
				if code == "" {
					code = GetErrorCode(ctx)
				}
				if code != "" {
					attrs = append(attrs, slog.String("error_code", code))
				}
			}

			logger.LogAttrs(ctx, levelFor(rec.status), "request completed", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
