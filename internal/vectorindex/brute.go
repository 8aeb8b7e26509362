package vectorindex

import (
	"container/heap"
	"math"
)

// CosineSimilarity computes dot(q, v) / (||q|| * ||v||).
// Returns 0 when either vector has zero norm.
func CosineSimilarity(q, v []float32) float64 {
	var dot, qq, vv float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		qq += float64(q[i]) * float64(q[i])
		vv += float64(v[i]) * float64(v[i])
	}
	if qq == 0 || vv == 0 {
		return 0
	}
	return dot / (math.Sqrt(qq) * math.Sqrt(vv))
}

// BruteForce scores every valid candidate and keeps the topK through a
// bounded min-heap, giving O(n log k) instead of a full sort.
type BruteForce struct{}

var _ Searcher = BruteForce{}

// Search implements Searcher.
func (BruteForce) Search(query []float32, candidates []Candidate, topK int) []Match {
	if topK <= 0 || len(query) == 0 {
		return nil
	}

	h := make(matchHeap, 0, topK)
	for _, c := range candidates {
		if c.Vector == nil || len(c.Vector) != len(query) {
			continue
		}
		m := Match{ID: c.ID, Score: CosineSimilarity(query, c.Vector)}
		switch {
		case h.Len() < topK:
			heap.Push(&h, m)
		case worse(h[0], m):
			h[0] = m
			heap.Fix(&h, 0)
		}
	}

	// Pop yields worst-first; fill from the back for descending order.
	out := make([]Match, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Match)
	}
	return out
}

// worse reports whether a ranks below b: lower score, or equal score with
// higher id (equal-score ties resolve to the smaller id for determinism).
func worse(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// matchHeap is a min-heap keeping the worst retained match at the root.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return worse(h[i], h[j]) }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
