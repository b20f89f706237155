package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/provider-search/internal/persona"
	"github.com/onnwee/provider-search/internal/ranking"
)

// PersonaHandlers serves the read-only persona catalogue.
type PersonaHandlers struct {
	personas ranking.PersonaSource
}

// NewPersonaHandlers creates persona handlers reading from personas.
func NewPersonaHandlers(personas ranking.PersonaSource) *PersonaHandlers {
	return &PersonaHandlers{personas: personas}
}

// PersonaListResponse is the body of GET /personas.
type PersonaListResponse struct {
	Personas []persona.Summary `json:"personas"`
	Count    int               `json:"count"`
}

// PersonaDetailResponse is the body of GET /personas/{id}.
type PersonaDetailResponse struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	PriorityOrder  []persona.Category `json:"priority_order"`
	FeatureWeights map[string]float64 `json:"feature_weights"`
}

// ListPersonas handles GET /personas.
func (h *PersonaHandlers) ListPersonas(w http.ResponseWriter, r *http.Request) {
	profiles := h.personas.Current().List()

	resp := PersonaListResponse{
		Personas: make([]persona.Summary, 0, len(profiles)),
		Count:    len(profiles),
	}
	for _, p := range profiles {
		resp.Personas = append(resp.Personas, p.Summary())
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// GetPersona handles GET /personas/{id}.
func (h *PersonaHandlers) GetPersona(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	profile, err := h.personas.Current().Get(id)
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			writeCodedError(w, r, ErrCodeNotFound, "Persona not found: "+id)
			return
		}
		slog.ErrorContext(r.Context(), "persona lookup failed", "error", err, "persona", id)
		writeCodedError(w, r, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, PersonaDetailResponse{
		ID:             profile.ID,
		Name:           profile.Name,
		Description:    profile.Description,
		PriorityOrder:  profile.PriorityOrder,
		FeatureWeights: profile.WeightMap(),
	})
}
