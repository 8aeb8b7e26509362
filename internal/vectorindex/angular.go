package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
)

// Angular-distance tree index in the style of Annoy: a forest of random
// hyperplane trees over the candidate vectors, built per query and
// discarded afterwards. Distance is the angular metric
// sqrt(2 - 2*cos(q, v)), range [0, 2].

const (
	defaultTrees  = 10
	leafCapacity  = 16
	splitAttempts = 5
)

// AngularSimilarity converts an angular distance to a similarity score,
// clamped to [0, 1]: f(0) = 1, f(2) = 0, monotonically decreasing.
func AngularSimilarity(distance float64) float64 {
	s := 1 - distance/2
	return math.Max(0, math.Min(1, s))
}

// AngularDistance computes the angular metric between two vectors.
func AngularDistance(q, v []float32) float64 {
	cos := CosineSimilarity(q, v)
	return math.Sqrt(math.Max(0, 2-2*cos))
}

// AngularIndex is an ephemeral approximate nearest-neighbor index.
type AngularIndex struct {
	dim   int
	ids   []int64
	items [][]float32
	roots []int
	nodes []annNode
	rng   *rand.Rand
}

type annNode struct {
	plane       []float32
	left, right int
	leaf        []int // item positions; non-nil marks a leaf
}

// NewAngularIndex creates an index for vectors of the given dimensionality.
// The seed fixes the random hyperplane choices so rankings are reproducible.
func NewAngularIndex(dim int, seed int64) *AngularIndex {
	return &AngularIndex{
		dim: dim,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// AddItem registers a vector under the given id. Must be called before Build.
func (ix *AngularIndex) AddItem(id int64, vec []float32) {
	ix.ids = append(ix.ids, id)
	ix.items = append(ix.items, vec)
}

// Build constructs nTrees random hyperplane trees over the added items.
func (ix *AngularIndex) Build(nTrees int) {
	if nTrees <= 0 {
		nTrees = defaultTrees
	}
	all := make([]int, len(ix.items))
	for i := range all {
		all[i] = i
	}
	ix.roots = make([]int, 0, nTrees)
	for t := 0; t < nTrees; t++ {
		idx := make([]int, len(all))
		copy(idx, all)
		ix.roots = append(ix.roots, ix.buildNode(idx))
	}
}

func (ix *AngularIndex) buildNode(items []int) int {
	if len(items) <= leafCapacity {
		ix.nodes = append(ix.nodes, annNode{leaf: items})
		return len(ix.nodes) - 1
	}

	plane, left, right := ix.split(items)
	if plane == nil {
		// Degenerate set (duplicates or collinear points): keep as a leaf.
		ix.nodes = append(ix.nodes, annNode{leaf: items})
		return len(ix.nodes) - 1
	}

	// Reserve the node slot before recursing so child indexes stay valid.
	ix.nodes = append(ix.nodes, annNode{plane: plane})
	pos := len(ix.nodes) - 1
	l := ix.buildNode(left)
	r := ix.buildNode(right)
	ix.nodes[pos].left = l
	ix.nodes[pos].right = r
	return pos
}

// split samples two items and separates the set by the hyperplane through
// their difference. Retries a few times when the split is lopsided.
func (ix *AngularIndex) split(items []int) (plane []float32, left, right []int) {
	for attempt := 0; attempt < splitAttempts; attempt++ {
		a := ix.items[items[ix.rng.Intn(len(items))]]
		b := ix.items[items[ix.rng.Intn(len(items))]]
		p := planeBetween(a, b)
		if p == nil {
			continue
		}
		var l, r []int
		for _, it := range items {
			if side(p, ix.items[it]) {
				r = append(r, it)
			} else {
				l = append(l, it)
			}
		}
		if len(l) > 0 && len(r) > 0 {
			return p, l, r
		}
	}
	return nil, nil, nil
}

func planeBetween(a, b []float32) []float32 {
	p := make([]float32, len(a))
	var norm float64
	for i := range a {
		p[i] = a[i] - b[i]
		norm += float64(p[i]) * float64(p[i])
	}
	if norm == 0 {
		return nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range p {
		p[i] *= inv
	}
	return p
}

func side(plane, v []float32) bool {
	return margin(plane, v) >= 0
}

func margin(plane, v []float32) float64 {
	var dot float64
	for i := range plane {
		dot += float64(plane[i]) * float64(v[i])
	}
	return dot
}

// NNsByVector returns the n nearest item ids with their angular distances.
// Traversal is a bounded priority search across all trees; the collected
// candidate set is re-scored exactly, so only recall is approximate.
func (ix *AngularIndex) NNsByVector(query []float32, n int) (ids []int64, distances []float64) {
	if n <= 0 || len(ix.items) == 0 {
		return nil, nil
	}

	searchK := n * len(ix.roots)
	if searchK < n {
		searchK = n
	}

	pq := make(nodeQueue, 0, len(ix.roots))
	for _, root := range ix.roots {
		heap.Push(&pq, nodeRef{node: root, priority: math.Inf(1)})
	}

	seen := make(map[int]struct{})
	var candidates []int
	for pq.Len() > 0 && len(candidates) < searchK {
		ref := heap.Pop(&pq).(nodeRef)
		node := ix.nodes[ref.node]
		if node.leaf != nil {
			for _, it := range node.leaf {
				if _, ok := seen[it]; !ok {
					seen[it] = struct{}{}
					candidates = append(candidates, it)
				}
			}
			continue
		}
		m := margin(node.plane, query)
		heap.Push(&pq, nodeRef{node: node.right, priority: math.Min(ref.priority, m)})
		heap.Push(&pq, nodeRef{node: node.left, priority: math.Min(ref.priority, -m)})
	}

	type scored struct {
		pos  int
		dist float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, it := range candidates {
		ranked = append(ranked, scored{pos: it, dist: AngularDistance(query, ix.items[it])})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ix.ids[ranked[i].pos] < ix.ids[ranked[j].pos]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	ids = make([]int64, len(ranked))
	distances = make([]float64, len(ranked))
	for i, s := range ranked {
		ids[i] = ix.ids[s.pos]
		distances[i] = s.dist
	}
	return ids, distances
}

type nodeRef struct {
	node     int
	priority float64
}

// nodeQueue is a max-heap over traversal priority.
type nodeQueue []nodeRef

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].priority > q[j].priority }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodeRef)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// ANN is a Searcher that builds an ephemeral AngularIndex per query.
// Callers with large, stable candidate sets should build and persist an
// index offline instead of paying the per-query rebuild.
type ANN struct {
	Trees int
	Seed  int64
}

var _ Searcher = ANN{}

// Search implements Searcher.
func (a ANN) Search(query []float32, candidates []Candidate, topK int) []Match {
	if topK <= 0 || len(query) == 0 {
		return nil
	}

	ix := NewAngularIndex(len(query), a.Seed)
	for _, c := range candidates {
		if c.Vector == nil || len(c.Vector) != len(query) {
			continue
		}
		ix.AddItem(c.ID, c.Vector)
	}
	if len(ix.items) == 0 {
		return nil
	}

	ix.Build(a.Trees)
	ids, dists := ix.NNsByVector(query, topK)

	matches := make([]Match, len(ids))
	for i := range ids {
		matches[i] = Match{ID: ids[i], Score: AngularSimilarity(dists[i])}
	}
	return matches
}
