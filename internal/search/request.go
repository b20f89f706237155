// Package search orchestrates one provider search: request validation and
// defaults, baseline retrieval, persona reranking and explanation.
package search

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/onnwee/provider-search/internal/retrieval"
	"github.com/onnwee/provider-search/internal/validate"
)

// Request defaults.
const (
	DefaultMethod = retrieval.MethodBM25
	DefaultK      = 20
	DefaultAlpha  = 0.5
)

// MaxQueryLength bounds the free-text query in characters.
const MaxQueryLength = validate.MaxQueryLength

// Request is the body of a search call. Pointer fields distinguish
// "omitted" from an explicit zero.
type Request struct {
	Query              string   `json:"query"`
	Persona            string   `json:"persona,omitempty"`
	Method             string   `json:"method,omitempty"`
	K                  *int     `json:"k,omitempty"`
	Alpha              *float64 `json:"alpha,omitempty"`
	IncludeFeatures    bool     `json:"include_features,omitempty"`
	IncludeExplanation bool     `json:"include_explanation,omitempty"`
}

// Params is a validated Request with defaults applied.
type Params struct {
	Query              string
	Persona            string
	Method             retrieval.Method
	K                  int
	Alpha              float64
	IncludeFeatures    bool
	IncludeExplanation bool
}

// Normalize applies defaults and validates the request.
// Errors wrap ranking.ErrValidation.
func (r Request) Normalize() (Params, error) {
	p := Params{
		Persona:            strings.TrimSpace(r.Persona),
		Method:             DefaultMethod,
		K:                  DefaultK,
		Alpha:              DefaultAlpha,
		IncludeFeatures:    r.IncludeFeatures,
		IncludeExplanation: r.IncludeExplanation,
	}

	query, err := validate.Query(r.Query)
	switch {
	case errors.Is(err, validate.ErrEmpty):
		return Params{}, fmt.Errorf("%w: missing required field: query", ranking.ErrValidation)
	case errors.Is(err, validate.ErrStringTooLong):
		return Params{}, fmt.Errorf("%w: query must be at most %d characters", ranking.ErrValidation, MaxQueryLength)
	case err != nil:
		return Params{}, fmt.Errorf("%w: query %v", ranking.ErrValidation, err)
	}
	p.Query = query

	if r.Method != "" {
		m, ok := retrieval.ParseMethod(r.Method)
		if !ok {
			return Params{}, fmt.Errorf("%w: invalid method %q, must be %q or %q",
				ranking.ErrValidation, r.Method, retrieval.MethodBM25, retrieval.MethodQLDirichlet)
		}
		p.Method = m
	}

	if r.K != nil {
		p.K = *r.K
	}
	if p.K < ranking.MinK || p.K > ranking.MaxK {
		return Params{}, fmt.Errorf("%w: k must be an integer between %d and %d", ranking.ErrValidation, ranking.MinK, ranking.MaxK)
	}

	if r.Alpha != nil {
		p.Alpha = *r.Alpha
	}
	if math.IsNaN(p.Alpha) || p.Alpha < 0 || p.Alpha > 1 {
		return Params{}, fmt.Errorf("%w: alpha must be a number between 0 and 1", ranking.ErrValidation)
	}

	return p, nil
}
