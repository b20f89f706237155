// Package api provides the HTTP handlers of the provider search service and
// its standardized error envelope.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/provider-search/internal/middleware"
)

// Error codes returned in the "code" field of the error envelope.
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeUnknownPersona   = "unknown_persona" // details.available_personas lists the loaded ids
	ErrCodeAuthFailed       = "auth_failed"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeRetrievalFailed  = "retrieval_failed"
	ErrCodeRetrievalTimeout = "retrieval_timeout"
	// ErrCodeReloadFailed means the new persona table was rejected and the
	// previous one is still serving.
	ErrCodeReloadFailed = "reload_failed"
	ErrCodeInternal     = "internal_error"
)

// ErrorResponse is the body of every non-2xx response:
// {"error": {"code": "...", "message": "...", "details": {...}}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteError writes the error envelope. Set the code on ctx with
// middleware.SetErrorCode first and the request log will carry it.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	WriteErrorWithDetails(w, ctx, status, code, message, nil)
}

// WriteErrorWithDetails is WriteError with a details object.
func WriteErrorWithDetails(w http.ResponseWriter, ctx context.Context, status int, code, message string, details map[string]any) {
	middleware.UpdateResponseContext(w, ctx)

	body, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}})
	if err != nil {
		// Only reachable with unencodable details.
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err, "code", code)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.DebugContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status for an error code; unknown codes
// map to 500.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeUnknownPersona, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeRetrievalFailed:
		return http.StatusBadGateway
	case ErrCodeRetrievalTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err, "path", r.URL.Path)
	}
}

// writeCodedError sets the error code on the request context and writes the
// error with the status StatusCodeMapping assigns to it.
func writeCodedError(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}
