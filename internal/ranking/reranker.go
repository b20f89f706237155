package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/onnwee/provider-search/internal/features"
	"github.com/onnwee/provider-search/internal/persona"
)

// ErrValidation is returned for malformed rerank input such as k or alpha out
// of range. It is a client error and never retried.
var ErrValidation = errors.New("validation error")

// Bounds on Options.K.
const (
	MinK = 1
	MaxK = 100
)

// RawCandidate is one retrieval hit: a provider id, its baseline relevance
// score and the provider's raw attributes. Attributes are never modified.
type RawCandidate struct {
	ProviderID    string
	BaselineScore float64
	Attributes    map[string]any
}

// ScoredCandidate is a candidate after reranking.
type ScoredCandidate struct {
	ProviderID         string
	BaselineScore      float64 // raw score from retrieval
	BaselineNormalized float64 // min-max normalized over the candidate set
	PersonaScore       float64
	CombinedScore      float64
	OriginalRank       int // 0-based position in the input
	Features           features.Vector
	Attributes         map[string]any
}

// Options controls one rerank call.
type Options struct {
	K         int     // number of results to keep, in [1, 100]
	PersonaID string  // empty for baseline-only ranking
	Alpha     float64 // baseline blend factor, in [0, 1]
}

// Validate checks K and Alpha. The returned error wraps ErrValidation.
func (o Options) Validate() error {
	if o.K < MinK || o.K > MaxK {
		return fmt.Errorf("%w: k must be an integer between %d and %d, got %d", ErrValidation, MinK, MaxK, o.K)
	}
	if math.IsNaN(o.Alpha) || o.Alpha < 0 || o.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be a number between 0 and 1, got %v", ErrValidation, o.Alpha)
	}
	return nil
}

// Result is the outcome of a rerank call. Persona is nil for baseline-only ranking.
type Result struct {
	Persona    *persona.Profile
	Candidates []ScoredCandidate
}

// PersonaSource supplies the active persona registry.
// *persona.Store satisfies it.
type PersonaSource interface {
	Current() *persona.Registry
}

// Reranker reorders candidates by persona preference.
type Reranker struct {
	extractor *features.Extractor
	personas  PersonaSource
	metrics   *Metrics
}

// NewReranker creates a reranker. metrics may be nil.
func NewReranker(extractor *features.Extractor, personas PersonaSource, metrics *Metrics) *Reranker {
	return &Reranker{
		extractor: extractor,
		personas:  personas,
		metrics:   metrics,
	}
}

// Rerank reorders candidates against the active persona registry.
func (r *Reranker) Rerank(candidates []RawCandidate, opts Options) (*Result, error) {
	return r.RerankWith(r.personas.Current(), candidates, opts)
}

// RerankWith reorders candidates against the given registry snapshot.
// Callers that check the persona before retrieval pass the same snapshot
// here so one request never sees two persona tables.
//
// Errors wrap ErrValidation for bad options or a non-finite baseline score,
// and persona.ErrNotFound for an unknown persona id. An empty candidate list
// yields an empty result.
func (r *Reranker) RerankWith(reg *persona.Registry, candidates []RawCandidate, opts Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		r.metrics.incError("validation")
		return nil, err
	}

	var profile *persona.Profile
	if opts.PersonaID != "" {
		p, err := reg.Get(opts.PersonaID)
		if err != nil {
			r.metrics.incError("unknown_persona")
			return nil, err
		}
		profile = p
	}

	baselines := make([]float64, len(candidates))
	for i, c := range candidates {
		if math.IsNaN(c.BaselineScore) || math.IsInf(c.BaselineScore, 0) {
			r.metrics.incError("validation")
			return nil, fmt.Errorf("%w: candidate %q has non-finite baseline score", ErrValidation, c.ProviderID)
		}
		baselines[i] = c.BaselineScore
	}
	normalized := NormalizeBaselines(baselines)

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		sc := ScoredCandidate{
			ProviderID:         c.ProviderID,
			BaselineScore:      c.BaselineScore,
			BaselineNormalized: normalized[i],
			OriginalRank:       i,
			Features:           r.extractor.Extract(c.Attributes),
			Attributes:         c.Attributes,
		}
		// Without a persona the persona term is zero: combined = alpha*norm.
		if profile != nil {
			sc.PersonaScore = profile.Score(&sc.Features)
		}
		sc.CombinedScore = CombinedScore(opts.Alpha, sc.BaselineNormalized, sc.PersonaScore)
		scored[i] = sc
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := &scored[i], &scored[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		// alpha=0 without a persona zeroes every score; keep baseline order.
		if profile == nil && a.BaselineNormalized != b.BaselineNormalized {
			return a.BaselineNormalized > b.BaselineNormalized
		}
		return a.OriginalRank < b.OriginalRank
	})

	if len(scored) > opts.K {
		scored = scored[:opts.K]
	}

	r.metrics.observe(opts.PersonaID, len(candidates), time.Since(start).Seconds())

	return &Result{Persona: profile, Candidates: scored}, nil
}
