package ranking

import (
	"math"
	"sort"
	"strconv"
	"testing"

	"github.com/onnwee/provider-search/internal/features"
	"pgregory.net/rapid"
)

// candidateGen draws a candidate set whose baseline scores repeat often
// enough to exercise tie-breaking.
func candidateGen() *rapid.Generator[[]RawCandidate] {
	return rapid.Custom(func(t *rapid.T) []RawCandidate {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		out := make([]RawCandidate, n)
		for i := range out {
			attrs := map[string]any{}
			if rapid.Bool().Draw(t, "has_distance") {
				attrs["distance_miles"] = rapid.Float64Range(0, 200).Draw(t, "distance")
			}
			if rapid.Bool().Draw(t, "has_rating") {
				attrs["average_rating"] = rapid.Float64Range(0, 5).Draw(t, "rating")
			}
			if rapid.Bool().Draw(t, "has_reviews") {
				attrs["num_reviews"] = rapid.IntRange(0, 5000).Draw(t, "reviews")
			}
			attrs["telehealth_available"] = rapid.Bool().Draw(t, "telehealth")
			out[i] = RawCandidate{
				ProviderID:    strconv.Itoa(i),
				BaselineScore: float64(rapid.IntRange(0, 8).Draw(t, "baseline")) / 2,
				Attributes:    attrs,
			}
		}
		return out
	})
}

var propertyWeights = map[string]float64{
	"distance_miles":       0.6,
	"average_rating":       0.3,
	"num_reviews":          0.1,
	"telehealth_available": -0.2,
}

// baselineOrder is the expected baseline ranking: score descending, input order on ties.
func baselineOrder(cs []RawCandidate, k int) []string {
	idx := make([]int, len(cs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return cs[idx[a]].BaselineScore > cs[idx[b]].BaselineScore
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = cs[j].ProviderID
	}
	return out
}

func TestProperty_BaselineEquivalence(t *testing.T) {
	r := newTestReranker(t, newRegistry(t, nil), nil)

	rapid.Check(t, func(t *rapid.T) {
		cs := candidateGen().Draw(t, "candidates")
		k := rapid.IntRange(MinK, MaxK).Draw(t, "k")
		alpha := rapid.Float64Range(0, 1).Draw(t, "alpha")

		res, err := r.Rerank(cs, Options{K: k, Alpha: alpha})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := ids(res.Candidates), baselineOrder(cs, k); !equalIDs(got, want) {
			t.Fatalf("expected baseline order %v, got %v", want, got)
		}
	})
}

func TestProperty_AlphaOneMatchesNoPersona(t *testing.T) {
	reg := newRegistry(t, map[string]map[string]float64{"p": propertyWeights})
	r := newTestReranker(t, reg, nil)

	rapid.Check(t, func(t *rapid.T) {
		cs := candidateGen().Draw(t, "candidates")
		k := rapid.IntRange(MinK, MaxK).Draw(t, "k")

		with, err := r.Rerank(cs, Options{K: k, PersonaID: "p", Alpha: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		without, err := r.Rerank(cs, Options{K: k, Alpha: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(ids(with.Candidates), ids(without.Candidates)) {
			t.Fatalf("alpha=1 with persona %v differs from no persona %v",
				ids(with.Candidates), ids(without.Candidates))
		}
	})
}

func TestProperty_AlphaZeroRanksByPersonaScore(t *testing.T) {
	reg := newRegistry(t, map[string]map[string]float64{"p": propertyWeights})
	profile, _ := reg.Get("p")
	r := newTestReranker(t, reg, nil)
	extractor := features.NewExtractor(features.DefaultLimits())

	rapid.Check(t, func(t *rapid.T) {
		cs := candidateGen().Draw(t, "candidates")

		res, err := r.Rerank(cs, Options{K: MaxK, PersonaID: "p", Alpha: 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		idx := make([]int, len(cs))
		scores := make([]float64, len(cs))
		for i, c := range cs {
			idx[i] = i
			v := extractor.Extract(c.Attributes)
			scores[i] = profile.Score(&v)
		}
		sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

		want := make([]string, len(idx))
		for i, j := range idx {
			want[i] = cs[j].ProviderID
		}
		if got := ids(res.Candidates); !equalIDs(got, want) {
			t.Fatalf("expected persona order %v, got %v", want, got)
		}
	})
}

func TestProperty_Deterministic(t *testing.T) {
	reg := newRegistry(t, map[string]map[string]float64{"p": propertyWeights})
	r := newTestReranker(t, reg, nil)

	rapid.Check(t, func(t *rapid.T) {
		cs := candidateGen().Draw(t, "candidates")
		opts := Options{
			K:         rapid.IntRange(MinK, MaxK).Draw(t, "k"),
			PersonaID: rapid.SampledFrom([]string{"", "p"}).Draw(t, "persona"),
			Alpha:     rapid.Float64Range(0, 1).Draw(t, "alpha"),
		}

		first, err := r.Rerank(cs, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := r.Rerank(cs, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first.Candidates) != len(second.Candidates) {
			t.Fatalf("result lengths differ: %d vs %d", len(first.Candidates), len(second.Candidates))
		}
		for i := range first.Candidates {
			a, b := first.Candidates[i], second.Candidates[i]
			if a.ProviderID != b.ProviderID ||
				math.Float64bits(a.CombinedScore) != math.Float64bits(b.CombinedScore) ||
				math.Float64bits(a.PersonaScore) != math.Float64bits(b.PersonaScore) {
				t.Fatalf("position %d differs between runs: %+v vs %+v", i, a, b)
			}
		}
	})
}

func TestProperty_ResultsSortedAndBounded(t *testing.T) {
	reg := newRegistry(t, map[string]map[string]float64{"p": propertyWeights})
	r := newTestReranker(t, reg, nil)

	rapid.Check(t, func(t *rapid.T) {
		cs := candidateGen().Draw(t, "candidates")
		k := rapid.IntRange(MinK, MaxK).Draw(t, "k")
		alpha := rapid.Float64Range(0, 1).Draw(t, "alpha")

		res, err := r.Rerank(cs, Options{K: k, PersonaID: "p", Alpha: alpha})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := min(k, len(cs)); len(res.Candidates) != want {
			t.Fatalf("expected %d results, got %d", want, len(res.Candidates))
		}
		for i := 1; i < len(res.Candidates); i++ {
			prev, cur := res.Candidates[i-1], res.Candidates[i]
			if prev.CombinedScore < cur.CombinedScore {
				t.Fatalf("not sorted at %d: %f < %f", i, prev.CombinedScore, cur.CombinedScore)
			}
			if prev.CombinedScore == cur.CombinedScore && prev.OriginalRank > cur.OriginalRank {
				t.Fatalf("tie at %d not broken by original rank", i)
			}
		}
		for _, c := range res.Candidates {
			if c.BaselineNormalized < 0 || c.BaselineNormalized > 1 {
				t.Fatalf("normalized baseline out of range: %f", c.BaselineNormalized)
			}
		}
	})
}
