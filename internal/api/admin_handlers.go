package api

import (
	"log/slog"
	"net/http"

	"github.com/onnwee/provider-search/internal/middleware"
	"github.com/onnwee/provider-search/internal/persona"
)

// AdminHandlers serves administrative operations. Routes must be wrapped
// in middleware.RequireAdmin.
type AdminHandlers struct {
	store *persona.Store
	load  persona.Loader
}

// NewAdminHandlers creates admin handlers reloading store with load.
func NewAdminHandlers(store *persona.Store, load persona.Loader) *AdminHandlers {
	return &AdminHandlers{store: store, load: load}
}

// ReloadResponse is the body of a successful persona reload.
type ReloadResponse struct {
	Status   string   `json:"status"`
	Count    int      `json:"count"`
	Personas []string `json:"personas"`
}

// ReloadPersonas handles POST /admin/personas/reload.
// On failure the active table stays in place and the error is returned to the caller.
func (h *AdminHandlers) ReloadPersonas(w http.ResponseWriter, r *http.Request) {
	reg, err := h.store.Reload(h.load)
	if err != nil {
		writeCodedError(w, r, ErrCodeReloadFailed, "Persona reload failed: "+err.Error())
		return
	}

	slog.InfoContext(r.Context(), "personas reloaded via admin endpoint",
		"subject", middleware.GetSubject(r.Context()),
		"count", reg.Len())

	writeJSON(w, r, http.StatusOK, ReloadResponse{
		Status:   "reloaded",
		Count:    reg.Len(),
		Personas: reg.IDs(),
	})
}
