package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
// All vectors returned by one provider instance have the same
// dimensionality; a search must never mix vectors from providers of
// different dimensionality.
type Embedder interface {
	// Embed maps a batch of texts to vectors, one per input, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
