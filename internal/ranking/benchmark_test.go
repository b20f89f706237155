package ranking

import (
	"strconv"
	"testing"
)

func benchmarkCandidates(n int) []RawCandidate {
	out := make([]RawCandidate, n)
	for i := range out {
		out[i] = RawCandidate{
			ProviderID:    strconv.Itoa(i),
			BaselineScore: float64(n - i),
			Attributes: map[string]any{
				"distance_miles":       float64(i % 60),
				"average_rating":       float64(i%5) + 0.5,
				"num_reviews":          i * 7,
				"telehealth_available": i%2 == 0,
				"accepts_medicaid":     "yes",
			},
		}
	}
	return out
}

// BenchmarkNormalizeBaselines benchmarks min-max normalization of a full pool.
func BenchmarkNormalizeBaselines(b *testing.B) {
	scores := make([]float64, 100)
	for i := range scores {
		scores[i] = float64(i) * 0.37
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeBaselines(scores)
	}
}

// BenchmarkRerank_WithPersona benchmarks a full rerank of a 100-candidate pool.
func BenchmarkRerank_WithPersona(b *testing.B) {
	r := newTestReranker(b, newRegistry(b, map[string]map[string]float64{"convenience": convenienceWeights}), nil)
	candidates := benchmarkCandidates(100)
	opts := Options{K: 20, PersonaID: "convenience", Alpha: 0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Rerank(candidates, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRerank_NoPersona benchmarks baseline-only ranking.
func BenchmarkRerank_NoPersona(b *testing.B) {
	r := newTestReranker(b, newRegistry(b, nil), nil)
	candidates := benchmarkCandidates(100)
	opts := Options{K: 20, Alpha: 0.5}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Rerank(candidates, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExplain benchmarks the explanation of one ranked candidate.
func BenchmarkExplain(b *testing.B) {
	reg := newRegistry(b, map[string]map[string]float64{"convenience": convenienceWeights})
	r := newTestReranker(b, reg, nil)
	res, err := r.Rerank(benchmarkCandidates(10), Options{K: 10, PersonaID: "convenience", Alpha: 0.5})
	if err != nil {
		b.Fatal(err)
	}
	top := res.Candidates[0]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Explain(top, res.Persona, 5)
	}
}
