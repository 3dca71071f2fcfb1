package retrieval

import (
	"cmp"
	"slices"

	"cbir-engine/internal/feature"
)

// Match is one ranked catalog entry.
type Match struct {
	ID       string
	Distance float64
	// Vectors are the feature vectors used to score the entry; populated
	// only when the engine keeps vectors.
	Vectors map[string]feature.Vector

	order int
}

// Result is a ranked catalog. Matches are sorted by ascending distance with
// ties kept in catalog order.
type Result struct {
	Matches   []Match
	Processed int
	Skipped   int
}

func sortMatches(m []Match) {
	slices.SortStableFunc(m, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
}

// Top returns up to k best matches.
func (r *Result) Top(k int) []Match {
	k = max(0, min(k, len(r.Matches)))
	return r.Matches[:k]
}

// Bottom returns up to k least similar matches, still in ascending order.
func (r *Result) Bottom(k int) []Match {
	k = max(0, min(k, len(r.Matches)))
	return r.Matches[len(r.Matches)-k:]
}

// Find returns the match with the given ID and its zero-based rank.
func (r *Result) Find(id string) (Match, int, bool) {
	for i, m := range r.Matches {
		if m.ID == id {
			return m, i, true
		}
	}
	return Match{}, -1, false
}
