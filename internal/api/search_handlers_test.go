package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/provider-search/internal/features"
	"github.com/onnwee/provider-search/internal/persona"
	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/onnwee/provider-search/internal/retrieval"
	"github.com/onnwee/provider-search/internal/search"
)

// fakeSearcher records the last request and returns canned results.
type fakeSearcher struct {
	resp  *search.Response
	err   error
	calls int
	last  search.Request
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (*search.Response, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

func (f *fakeSearcher) KnownPersonas() []string {
	return []string{"robert", "sarah"}
}

func postSearch(t *testing.T, h *SearchHandlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Search(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error body: %v, body: %s", err, w.Body.String())
	}
	return resp.Error
}

func TestSearch_DecodesRequest(t *testing.T) {
	f := &fakeSearcher{resp: &search.Response{Query: "cardiology", Results: []search.Result{}}}
	w := postSearch(t, NewSearchHandlers(f), `{"query":"cardiology","persona":"sarah","method":"ql_dirichlet","k":5,"alpha":0.25,"include_features":true,"include_explanation":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.calls != 1 {
		t.Fatalf("expected one search call, got %d", f.calls)
	}
	got := f.last
	if got.Query != "cardiology" || got.Persona != "sarah" || got.Method != "ql_dirichlet" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.K == nil || *got.K != 5 || got.Alpha == nil || *got.Alpha != 0.25 {
		t.Errorf("expected k=5 alpha=0.25, got k=%v alpha=%v", got.K, got.Alpha)
	}
	if !got.IncludeFeatures || !got.IncludeExplanation {
		t.Error("expected include flags to be decoded")
	}
}

func TestSearch_BadBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", ``, "request body must be JSON"},
		{"malformed", `{"query":`, "invalid JSON body"},
		{"array body", `[1,2]`, "must be a JSON object"},
		{"unknown field", `{"query":"q","limit":3}`, "unknown field"},
		{"fractional k", `{"query":"q","k":2.5}`, "k must be an integer between 1 and 100"},
		{"string k", `{"query":"q","k":"10"}`, "k must be an integer between 1 and 100"},
		{"string alpha", `{"query":"q","alpha":"high"}`, "alpha must be a number between 0 and 1"},
		{"trailing data", `{"query":"q"}{"query":"r"}`, "single JSON object"},
		{"oversized", `{"query":"` + strings.Repeat("a", MaxSearchBodyBytes) + `"}`, "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSearcher{}
			w := postSearch(t, NewSearchHandlers(f), tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			detail := decodeError(t, w)
			if detail.Code != ErrCodeValidation {
				t.Errorf("expected code %s, got %s", ErrCodeValidation, detail.Code)
			}
			if !strings.Contains(detail.Message, tt.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsg, detail.Message)
			}
			if f.calls != 0 {
				t.Error("search must not run for a rejected body")
			}
		})
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        fmt.Errorf("%w: alpha must be a number between 0 and 1", ranking.ErrValidation),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
			wantMsg:    "alpha must be a number between 0 and 1",
		},
		{
			name:       "unknown persona",
			err:        fmt.Errorf("%w: %q", persona.ErrNotFound, "nobody"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeUnknownPersona,
			wantMsg:    "Invalid persona: nobody",
		},
		{
			name:       "retrieval timeout",
			err:        fmt.Errorf("%w: %w", retrieval.ErrRetrieval, context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   ErrCodeRetrievalTimeout,
		},
		{
			name:       "retrieval failure",
			err:        fmt.Errorf("%w: index closed", retrieval.ErrRetrieval),
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodeRetrievalFailed,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postSearch(t, NewSearchHandlers(&fakeSearcher{err: tt.err}), `{"query":"q","persona":"nobody"}`)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			detail := decodeError(t, w)
			if detail.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, detail.Code)
			}
			if tt.wantMsg != "" && detail.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, detail.Message)
			}
		})
	}
}

func TestSearch_UnknownPersonaListsAvailable(t *testing.T) {
	f := &fakeSearcher{err: fmt.Errorf("%w: %q", persona.ErrNotFound, "nobody")}
	w := postSearch(t, NewSearchHandlers(f), `{"query":"q","persona":"nobody"}`)

	detail := decodeError(t, w)
	available, ok := detail.Details["available_personas"].([]any)
	if !ok || len(available) != 2 || available[0] != "robert" || available[1] != "sarah" {
		t.Errorf("expected available_personas [robert sarah], got %v", detail.Details)
	}
}

// staticRetriever returns the same candidates for every query.
type staticRetriever []ranking.RawCandidate

func (s staticRetriever) Retrieve(_ context.Context, _ string, _ retrieval.Method, k int) ([]ranking.RawCandidate, error) {
	if k < len(s) {
		return s[:k], nil
	}
	return s, nil
}

func newSearchService(t *testing.T) *search.Service {
	t.Helper()
	store := persona.NewStore(testRegistry(t), nil)
	reranker := ranking.NewReranker(features.NewExtractor(features.DefaultLimits()), store, nil)
	providers := staticRetriever{
		{ProviderID: "far", BaselineScore: 12, Attributes: map[string]any{
			"provider_name": "Dr. Far", "specialty_readable": "Cardiology", "distance_miles": 90.0, "average_rating": 3.0,
		}},
		{ProviderID: "near", BaselineScore: 10, Attributes: map[string]any{
			"provider_name": "Dr. Near", "specialty_readable": "Cardiology", "distance_miles": 1.0, "average_rating": 5.0,
		}},
	}
	return search.NewService(providers, reranker, store, search.Config{})
}

func TestSearch_EndToEndResponseShape(t *testing.T) {
	h := NewSearchHandlers(newSearchService(t))

	tests := []struct {
		name        string
		body        string
		wantOrder   []string
		wantPersona any
		wantAlpha   any
	}{
		{
			name:        "baseline order without persona",
			body:        `{"query":"cardiology"}`,
			wantOrder:   []string{"far", "near"},
			wantPersona: nil,
			wantAlpha:   nil,
		},
		{
			name:        "persona reorders",
			body:        `{"query":"cardiology","persona":"sarah","alpha":0.3}`,
			wantOrder:   []string{"near", "far"},
			wantPersona: "sarah",
			wantAlpha:   0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postSearch(t, h, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}

			var body map[string]any
			dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
			if err := dec.Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			for _, key := range []string{"query", "method", "persona", "alpha", "num_results", "results"} {
				if _, ok := body[key]; !ok {
					t.Errorf("response missing %q", key)
				}
			}
			if body["method"] != "bm25" {
				t.Errorf("expected default method bm25, got %v", body["method"])
			}
			if body["persona"] != tt.wantPersona || body["alpha"] != tt.wantAlpha {
				t.Errorf("expected persona=%v alpha=%v, got persona=%v alpha=%v",
					tt.wantPersona, tt.wantAlpha, body["persona"], body["alpha"])
			}

			results := body["results"].([]any)
			if len(results) != len(tt.wantOrder) {
				t.Fatalf("expected %d results, got %d", len(tt.wantOrder), len(results))
			}
			for i, want := range tt.wantOrder {
				r := results[i].(map[string]any)
				if r["provider_id"] != want {
					t.Errorf("rank %d: expected %s, got %v", i+1, want, r["provider_id"])
				}
				if r["rank"] != float64(i+1) {
					t.Errorf("expected rank %d, got %v", i+1, r["rank"])
				}
				if _, ok := r["features"]; ok {
					t.Error("features must be omitted unless requested")
				}
			}
		})
	}
}
