package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Defaults applied when CORSConfig leaves a list empty.
var (
	DefaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	DefaultCORSHeaders = []string{"Content-Type", "Authorization", RequestIDHeader}
)

// DefaultCORSMaxAge is the preflight cache duration in seconds.
const DefaultCORSMaxAge = 600

// CORSConfig lists the exact origins allowed to call the API. Wildcards are
// not supported.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds; 0 omits Access-Control-Max-Age
}

// corsPolicy is CORSConfig with the header values precomputed.
type corsPolicy struct {
	origins     map[string]bool
	methods     string
	headers     string
	maxAge      string
	credentials bool
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool), credentials: cfg.AllowCredentials}
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = true
		}
	}
	methods, headers := cfg.AllowedMethods, cfg.AllowedHeaders
	if len(methods) == 0 {
		methods = DefaultCORSMethods
	}
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	p.methods = strings.Join(methods, ", ")
	p.headers = strings.Join(headers, ", ")
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// CORS answers cross-origin requests from the configured origins and
// handles preflights itself with 204.
//
// With no origins configured the middleware is a no-op. Requests without an
// Origin header pass through as same-origin; any other origin gets 403
// forbidden in the standard error envelope.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		if len(p.origins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if !p.origins[origin] {
				writeError(w, r.Context(), http.StatusForbidden, "forbidden", "Origin not allowed")
				return
			}
			h.Set("Access-Control-Allow-Origin", origin)
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !isPreflight(r) {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			if p.maxAge != "" {
				h.Set("Access-Control-Max-Age", p.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
