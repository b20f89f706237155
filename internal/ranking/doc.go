// Package ranking reorders retrieved provider candidates by blending their
// baseline relevance with a persona preference score.
//
// Basic Usage:
//
//	reranker := ranking.NewReranker(features.NewExtractor(features.DefaultLimits()), store, metrics)
//
//	result, err := reranker.Rerank(candidates, ranking.Options{
//		K:         20,
//		PersonaID: "sarah",
//		Alpha:     0.5,
//	})
//	if err != nil {
//		// errors.Is(err, ranking.ErrValidation) or errors.Is(err, persona.ErrNotFound)
//	}
//
//	top, err := ranking.Explain(result.Candidates[0], result.Persona, 5)
//
// Scoring:
//
// Baseline scores are min-max normalized over the current candidate set
// (1.0 for every candidate when all scores are equal). The persona score is
// the sum of feature value times weight over the persona's weighted features,
// left unnormalized. The two are blended as
//
//	combined = alpha*normalizedBaseline + (1-alpha)*personaScore
//
// and candidates are sorted by combined score descending, ties broken by
// their position in the input. Without a persona the persona term is zero
// and the ranking follows the normalized baseline regardless of alpha.
//
// The package holds no per-request state. A Reranker is safe for concurrent use.
package ranking
