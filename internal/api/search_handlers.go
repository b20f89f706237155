package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/provider-search/internal/middleware"
	"github.com/onnwee/provider-search/internal/persona"
	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/onnwee/provider-search/internal/retrieval"
	"github.com/onnwee/provider-search/internal/search"
)

// MaxSearchBodyBytes bounds the POST /search request body.
const MaxSearchBodyBytes = 16 << 10

// Searcher runs searches; implemented by *search.Service.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	KnownPersonas() []string
}

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	searcher Searcher
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(searcher Searcher) *SearchHandlers {
	return &SearchHandlers{searcher: searcher}
}

// Search handles POST /search.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(w, r)
	if err != nil {
		writeCodedError(w, r, ErrCodeValidation, err.Error())
		return
	}

	resp, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, r, req, err)
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (h *SearchHandlers) writeSearchError(w http.ResponseWriter, r *http.Request, req search.Request, err error) {
	switch {
	case errors.Is(err, ranking.ErrValidation):
		writeCodedError(w, r, ErrCodeValidation, validationMessage(err))

	case errors.Is(err, persona.ErrNotFound):
		code := ErrCodeUnknownPersona
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteErrorWithDetails(w, ctx, StatusCodeMapping(code), code,
			"Invalid persona: "+strings.TrimSpace(req.Persona),
			map[string]any{"available_personas": h.searcher.KnownPersonas()})

	case errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(r.Context(), "retrieval timed out", "error", err)
		writeCodedError(w, r, ErrCodeRetrievalTimeout, "Search timed out")

	case errors.Is(err, retrieval.ErrRetrieval):
		slog.ErrorContext(r.Context(), "retrieval failed", "error", err)
		writeCodedError(w, r, ErrCodeRetrievalFailed, "Search failed")

	default:
		slog.ErrorContext(r.Context(), "search failed", "error", err)
		writeCodedError(w, r, ErrCodeInternal, "Internal server error")
	}
}

// decodeSearchRequest reads the JSON body. Unknown fields are rejected.
// Type errors on k and alpha get the same messages as range errors.
func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (search.Request, error) {
	var req search.Request

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxSearchBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return req, errors.New("request body must be JSON")
		case errors.As(err, &maxErr):
			return req, fmt.Errorf("request body must be at most %d bytes", maxErr.Limit)
		case errors.As(err, &typeErr):
			return req, typeMessage(typeErr)
		default:
			return req, fmt.Errorf("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return req, errors.New("request body must contain a single JSON object")
	}
	return req, nil
}

func typeMessage(err *json.UnmarshalTypeError) error {
	switch err.Field {
	case "k":
		return fmt.Errorf("k must be an integer between %d and %d", ranking.MinK, ranking.MaxK)
	case "alpha":
		return errors.New("alpha must be a number between 0 and 1")
	case "":
		return errors.New("request body must be a JSON object")
	default:
		return fmt.Errorf("field %s must be of type %s", err.Field, err.Type)
	}
}

// validationMessage strips the sentinel prefix for the client.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ranking.ErrValidation.Error()+": ")
}
