package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecorder_FirstStatusWins(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := newRecorder(rr)

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	n, err := rec.Write([]byte("missing"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if rec.status != http.StatusNotFound || rr.Code != http.StatusNotFound {
		t.Errorf("status = %d (underlying %d), want 404", rec.status, rr.Code)
	}
	if rec.bytes != int64(n) || n != len("missing") {
		t.Errorf("bytes = %d, wrote %d", rec.bytes, n)
	}
}

func TestRecorder_WriteImpliesOK(t *testing.T) {
	rec := newRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("a"))
	_, _ = rec.Write([]byte("bc"))
	if rec.status != http.StatusOK || rec.bytes != 3 {
		t.Errorf("got status %d bytes %d", rec.status, rec.bytes)
	}
}

func TestUpdateResponseContext_ReachesNestedRecorders(t *testing.T) {
	outer := newRecorder(httptest.NewRecorder())
	inner := newRecorder(outer)

	UpdateResponseContext(inner, SetErrorCode(context.Background(), "invalid_request"))

	if outer.errorCode != "invalid_request" || inner.errorCode != "invalid_request" {
		t.Errorf("codes = %q, %q", outer.errorCode, inner.errorCode)
	}
}

func TestUpdateResponseContext_PlainWriter(t *testing.T) {
	// Must not panic on writers that are not recorders.
	UpdateResponseContext(httptest.NewRecorder(), SetErrorCode(context.Background(), "x"))
	UpdateResponseContext(newRecorder(httptest.NewRecorder()), context.Background())
}

func TestRecorder_ResponseControllerFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := newRecorder(rr)
	if err := http.NewResponseController(rec).Flush(); err != nil {
		t.Fatalf("Flush through recorder: %v", err)
	}
	if !rr.Flushed {
		t.Error("underlying writer not flushed")
	}
}
