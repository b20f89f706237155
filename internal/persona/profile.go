// Package persona holds validated persona profiles: named weightings over
// normalized provider features, loaded once and replaced only as a whole.
package persona

import (
	"errors"

	"github.com/onnwee/provider-search/internal/features"
)

var (
	// ErrNotFound is returned when a persona id is not in the registry.
	ErrNotFound = errors.New("persona not found")

	// ErrInvalidConfig is returned when a persona configuration fails validation.
	// A load that returns it installs nothing.
	ErrInvalidConfig = errors.New("invalid persona configuration")
)

// Category is one of the preference categories a persona can prioritize.
type Category string

// Known categories.
const (
	CategoryConvenience Category = "convenience"
	CategoryQuality     Category = "quality"
	CategoryCost        Category = "cost"
	CategoryDemographic Category = "demographic"
	CategoryReligious   Category = "religious"
)

// Categories returns every known category.
func Categories() []Category {
	return []Category{
		CategoryConvenience,
		CategoryQuality,
		CategoryCost,
		CategoryDemographic,
		CategoryReligious,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryConvenience, CategoryQuality, CategoryCost, CategoryDemographic, CategoryReligious:
		return true
	}
	return false
}

// Weight is one feature weight. Negative values express an inverse preference.
type Weight struct {
	Key   features.Key
	Value float64
}

// Profile is a validated, read-only persona.
type Profile struct {
	ID            string
	Name          string
	Description   string
	PriorityOrder []Category

	// weights is sorted by key so score sums run in a fixed order.
	weights []Weight
}

// Weights returns a copy of the profile's weights in key order.
func (p *Profile) Weights() []Weight {
	out := make([]Weight, len(p.weights))
	copy(out, p.weights)
	return out
}

// Score computes the persona score for a feature vector:
// the sum of value*weight over the weighted keys. Omitted keys contribute nothing.
func (p *Profile) Score(v *features.Vector) float64 {
	score := 0.0
	for _, w := range p.weights {
		score += v.Get(w.Key) * w.Value
	}
	return score
}

// WeightMap renders weights keyed by feature wire name.
func (p *Profile) WeightMap() map[string]float64 {
	m := make(map[string]float64, len(p.weights))
	for _, w := range p.weights {
		m[w.Key.String()] = w.Value
	}
	return m
}

// Summary is the short listing form of a profile.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Summary returns the listing form of the profile.
func (p *Profile) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Name, Description: p.Description}
}
