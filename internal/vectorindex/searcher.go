// Package vectorindex ranks candidate vectors against a query vector.
//
// Two strategies are provided: exact brute-force cosine scoring with
// heap-based partial selection, and an ephemeral angular-distance tree
// index for large candidate sets. Both skip candidates whose vector is
// nil (not yet embedded) or whose dimensionality differs from the query,
// and both order results by descending score with ascending-id tie-break.
package vectorindex

// Candidate tags a vector with an opaque id. A nil vector marks a record
// that has not been embedded yet; searchers skip it entirely, so it is
// never scored and does not count toward topK.
type Candidate struct {
	ID     int64
	Vector []float32
}

// Match pairs a candidate id with a similarity score in [0, 1].
type Match struct {
	ID    int64
	Score float64
}

// Searcher returns the topK candidates most similar to the query vector.
// When topK exceeds the number of valid candidates, all valid candidates
// are returned ranked. An empty or fully-unembedded candidate set yields
// an empty result, never an error.
type Searcher interface {
	Search(query []float32, candidates []Candidate, topK int) []Match
}
