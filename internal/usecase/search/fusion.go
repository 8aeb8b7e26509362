package search

import (
	"sort"

	"github.com/zakupki-tools/tendex/internal/vectorindex"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// FuseRRF merges two scored lists via reciprocal-score fusion: each
// occurrence of an id contributes 1/(k + (1 - score)) to its total, so an
// id present in both lists always outranks the same id seen once with the
// same individual score. The k constant damps low-confidence long-tail
// matches. Output is every accumulated id sorted by descending fused
// score, ties broken by ascending id; the caller truncates downstream.
func FuseRRF(first, second []vectorindex.Match, k int) []vectorindex.Match {
	if k <= 0 {
		k = rrfK
	}

	fused := make(map[int64]float64)
	for _, m := range first {
		fused[m.ID] += 1 / (float64(k) + (1 - m.Score))
	}
	for _, m := range second {
		fused[m.ID] += 1 / (float64(k) + (1 - m.Score))
	}

	return sortedMatches(fused)
}

// FuseSimple is the coarse fallback ranking: each id earns +1 per list it
// appears in, so cross-list agreement always wins regardless of position.
func FuseSimple(first, second []vectorindex.Match) []vectorindex.Match {
	fused := make(map[int64]float64)
	for _, m := range first {
		fused[m.ID]++
	}
	for _, m := range second {
		fused[m.ID]++
	}

	return sortedMatches(fused)
}

func sortedMatches(scores map[int64]float64) []vectorindex.Match {
	out := make([]vectorindex.Match, 0, len(scores))
	for id, s := range scores {
		out = append(out, vectorindex.Match{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
