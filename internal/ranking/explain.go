package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/onnwee/provider-search/internal/persona"
)

// Contribution is one feature's share of a persona score.
type Contribution struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Explain lists the persona's weighted features for c, ordered by absolute
// contribution descending and limited to topN. Ties keep feature key order.
//
// A persona is required: baseline-only rankings have nothing to explain,
// so a nil profile returns an error wrapping ErrValidation.
func Explain(c ScoredCandidate, profile *persona.Profile, topN int) ([]Contribution, error) {
	if profile == nil {
		return nil, fmt.Errorf("%w: explanation requires a persona", ErrValidation)
	}
	if topN < 1 {
		return nil, fmt.Errorf("%w: topN must be at least 1, got %d", ErrValidation, topN)
	}

	weights := profile.Weights()
	out := make([]Contribution, 0, len(weights))
	for _, w := range weights {
		value := c.Features.Get(w.Key)
		out = append(out, Contribution{
			Feature:      w.Key.String(),
			Value:        value,
			Weight:       w.Value,
			Contribution: value * w.Value,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}
