package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/onnwee/provider-search/internal/persona"
)

func TestPersonaChecker(t *testing.T) {
	empty, err := persona.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry(nil): %v", err)
	}
	loaded, err := persona.NewRegistry([]persona.Config{{
		ID:            "sarah",
		Name:          "Sarah",
		PriorityOrder: []string{"convenience"},
		FeatureWeights: map[string]map[string]json.RawMessage{
			"convenience": {"distance_miles": json.RawMessage("0.8")},
		},
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	tests := []struct {
		name    string
		reg     *persona.Registry
		wantErr error
	}{
		{"empty table", empty, ErrNoPersonas},
		{"loaded table", loaded, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPersonaChecker(persona.NewStore(tt.reg, nil)).HealthCheck(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("HealthCheck() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
