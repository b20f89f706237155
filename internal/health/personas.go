package health

import (
	"context"
	"errors"

	"github.com/onnwee/provider-search/internal/persona"
)

// ErrNoPersonas is returned when the active persona table is empty.
var ErrNoPersonas = errors.New("no personas loaded")

// PersonaChecker reports ready once at least one persona is active.
type PersonaChecker struct {
	store *persona.Store
}

// NewPersonaChecker creates a checker over store.
func NewPersonaChecker(store *persona.Store) *PersonaChecker {
	return &PersonaChecker{store: store}
}

// HealthCheck fails when no registry or an empty one is active.
func (p *PersonaChecker) HealthCheck(_ context.Context) error {
	if reg := p.store.Current(); reg == nil || reg.Len() == 0 {
		return ErrNoPersonas
	}
	return nil
}
