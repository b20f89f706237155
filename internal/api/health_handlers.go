package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DefaultReadyTimeout bounds all readiness checks together.
const DefaultReadyTimeout = 5 * time.Second

// Readiness check values.
const (
	checkOK       = "ok"
	checkError    = "error"
	checkDisabled = "disabled"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	// Required: the service cannot answer searches without them.
	personaChecker HealthChecker
	indexChecker   HealthChecker

	// Optional; nil when the backing service is not configured.
	dbChecker    HealthChecker
	redisChecker HealthChecker

	timeout time.Duration
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	PersonaChecker HealthChecker
	IndexChecker   HealthChecker
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	Timeout        time.Duration
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	return &HealthHandlers{
		personaChecker: config.PersonaChecker,
		indexChecker:   config.IndexChecker,
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		timeout:        timeout,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// If we can respond, we're alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": checkOK},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when a configured dependency fails its check or a required one is missing.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, 4)
	healthy := true

	run := func(name string, checker HealthChecker, required bool) {
		if checker == nil {
			if required {
				checks[name] = checkError
				healthy = false
			} else {
				checks[name] = checkDisabled
			}
			return
		}
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = checkError
			healthy = false
			slog.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			return
		}
		checks[name] = checkOK
	}

	run("personas", h.personaChecker, true)
	run("index", h.indexChecker, true)
	run("database", h.dbChecker, false)
	run("redis", h.redisChecker, false)

	status, statusCode := "healthy", http.StatusOK
	if !healthy {
		status, statusCode = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, r, statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
