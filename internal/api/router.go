package api

import (
	"net/http"
)

// ServiceName is reported by GET / and used as the tracing service name.
const ServiceName = "provider-search"

// RouterConfig wires handlers and per-route middleware into the mux.
// Optional fields may be nil.
type RouterConfig struct {
	Personas *PersonaHandlers
	Search   *SearchHandlers
	Health   *HealthHandlers
	Admin    *AdminHandlers

	// Metrics serves GET /metrics.
	Metrics http.Handler

	// SearchLimiter wraps POST /search.
	SearchLimiter func(http.Handler) http.Handler
	// AdminGuard authenticates admin routes. Admin routes are not mounted without it.
	AdminGuard func(http.Handler) http.Handler
	// AdminLimiter wraps admin routes inside the guard.
	AdminLimiter func(http.Handler) http.Handler

	Version string
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// NewRouter builds the service's route table.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	endpoints := map[string]string{
		"GET /":              "API information",
		"GET /health":        "Liveness check",
		"GET /ready":         "Readiness check",
		"GET /personas":      "List available personas",
		"GET /personas/{id}": "Get persona details",
		"POST /search":       "Search providers with persona re-ranking",
	}

	route := func(method, path string, h http.Handler) {
		mux.Handle(method+" "+path, h)
		mux.Handle(path, methodNotAllowed(method))
	}

	route(http.MethodGet, "/health", http.HandlerFunc(cfg.Health.Health))
	route(http.MethodGet, "/ready", http.HandlerFunc(cfg.Health.Ready))
	route(http.MethodGet, "/personas", http.HandlerFunc(cfg.Personas.ListPersonas))
	route(http.MethodGet, "/personas/{id}", http.HandlerFunc(cfg.Personas.GetPersona))
	route(http.MethodPost, "/search", wrap(http.HandlerFunc(cfg.Search.Search), cfg.SearchLimiter))

	if cfg.Metrics != nil {
		route(http.MethodGet, "/metrics", cfg.Metrics)
		endpoints["GET /metrics"] = "Prometheus metrics"
	}
	if cfg.Admin != nil && cfg.AdminGuard != nil {
		reload := wrap(wrap(http.HandlerFunc(cfg.Admin.ReloadPersonas), cfg.AdminLimiter), cfg.AdminGuard)
		route(http.MethodPost, "/admin/personas/reload", reload)
		endpoints["POST /admin/personas/reload"] = "Reload persona configuration (admin)"
	}

	info := InfoResponse{Service: ServiceName, Version: cfg.Version, Endpoints: endpoints}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeCodedError(w, r, ErrCodeNotFound, "The requested resource was not found")
	})

	return mux
}

func wrap(h http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	if mw == nil {
		return h
	}
	return mw(h)
}

func methodNotAllowed(allow string) http.Handler {
	if allow == http.MethodGet {
		allow = "GET, HEAD"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeCodedError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
	})
}
