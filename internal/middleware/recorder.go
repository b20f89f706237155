package middleware

import (
	"context"
	"net/http"
)

// recorder captures what a handler wrote: status, body size and the API
// error code. Logging and HTTPMetrics each wrap the writer with one.
type recorder struct {
	http.ResponseWriter
	status    int
	bytes     int64
	errorCode string
	wrote     bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records the first status only, as net/http sends only the first.
func (rec *recorder) WriteHeader(code int) {
	if rec.wrote {
		return
	}
	rec.status = code
	rec.wrote = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// UpdateResponseContext copies the error code stored in ctx onto every
// recorder wrapping w. Handlers set the code on a derived context that the
// outer middleware cannot see, so the writer carries it back out.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	code := GetErrorCode(ctx)
	if code == "" {
		return
	}
	for w != nil {
		if rec, ok := w.(*recorder); ok {
			rec.errorCode = code
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}
