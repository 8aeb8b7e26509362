package search

import (
	"context"

	"github.com/zakupki-tools/tendex/internal/domain"
)

// TenderStore is the storage contract consumed by the orchestrator.
type TenderStore interface {
	// GetByID returns a single tender or domain.ErrTenderNotFound.
	GetByID(ctx context.Context, id int64) (domain.Tender, error)
	// GetFiltered returns tenders matching the structured constraints,
	// each carrying its precomputed embedding vectors (nil when the
	// vectorization job has not reached the record yet).
	GetFiltered(ctx context.Context, f domain.TenderFilter) ([]domain.Tender, error)
}

// Interpreter converts a free-text query into a structured intent.
// A failure here is recoverable: the orchestrator degrades to an
// unfiltered raw-text search instead of aborting.
type Interpreter interface {
	Parse(ctx context.Context, rawQuery, regionHint string) (domain.Intent, error)
}
