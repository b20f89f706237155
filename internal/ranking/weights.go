package ranking

// NormalizeBaselines min-max normalizes scores over the given set.
// Every result lies in [0, 1]. When all scores are equal (including a set of
// one) every candidate gets 1.0, so no division by zero occurs and input
// order decides the ties.
//
// Returns a new slice; scores is not modified.
func NormalizeBaselines(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}

	span := hi - lo
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}

// CombinedScore blends a normalized baseline with a persona score.
//
// Formula: alpha*baseline + (1-alpha)*persona
//   - alpha = 1 ranks by baseline alone
//   - alpha = 0 ranks by persona preference alone
func CombinedScore(alpha, baseline, persona float64) float64 {
	return alpha*baseline + (1-alpha)*persona
}
