package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com", " https://ops.example.com "},
		AllowCredentials: true,
		MaxAge:           DefaultCORSMaxAge,
	}
	tests := []struct {
		name         string
		method       string
		origin       string
		preflight    bool
		wantStatus   int
		wantAllow    string
		wantMethods  bool
		wantNextCall bool
	}{
		{"same origin", http.MethodPost, "", false, http.StatusOK, "", false, true},
		{"allowed origin", http.MethodPost, "https://app.example.com", false, http.StatusOK, "https://app.example.com", false, true},
		{"trimmed origin", http.MethodGet, "https://ops.example.com", false, http.StatusOK, "https://ops.example.com", false, true},
		{"disallowed origin", http.MethodPost, "https://evil.example.com", false, http.StatusForbidden, "", false, false},
		{"preflight", http.MethodOptions, "https://app.example.com", true, http.StatusNoContent, "https://app.example.com", true, false},
		{"options without preflight header", http.MethodOptions, "https://app.example.com", false, http.StatusOK, "https://app.example.com", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
			req := httptest.NewRequest(tt.method, "/search", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNextCall {
				t.Errorf("next called = %v", called)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.origin != "" && rr.Header().Get("Vary") != "Origin" {
				t.Error("missing Vary: Origin")
			}
			hasMethods := rr.Header().Get("Access-Control-Allow-Methods") != ""
			if hasMethods != tt.wantMethods {
				t.Errorf("allow methods present = %v", hasMethods)
			}
			if tt.wantMethods && rr.Header().Get("Access-Control-Max-Age") != "600" {
				t.Errorf("max age = %q", rr.Header().Get("Access-Control-Max-Age"))
			}
			if tt.wantAllow != "" && rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("missing credentials header")
			}
		})
	}
}

func TestCORS_DisabledWithoutOrigins(t *testing.T) {
	h := CORS(CORSConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("expected passthrough, got %d %v", rr.Code, rr.Header())
	}
}

func TestCORS_RejectionUsesErrorEnvelope(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if body := rr.Body.String(); body != `{"error":{"code":"forbidden","message":"Origin not allowed"}}`+"\n" {
		t.Errorf("body = %s", body)
	}
}
