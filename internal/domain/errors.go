package domain

import "errors"

var (
	// ErrTenderNotFound signals a missing tender record.
	ErrTenderNotFound = errors.New("tender not found")
	// ErrInvalidFilter signals malformed structured filter input.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStoreUnavailable signals a tender store failure.
	ErrStoreUnavailable = errors.New("tender store unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInterpreterError signals an unusable query interpreter response.
	// The orchestrator recovers from it by degrading to raw-text search.
	ErrInterpreterError = errors.New("query interpreter error")
)
