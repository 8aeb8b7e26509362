package vectorize

import (
	"context"

	"github.com/zakupki-tools/tendex/internal/domain"
)

// Store is the consumer interface for the vectorization job (ISP).
type Store interface {
	ListUnvectorized(ctx context.Context, limit int) ([]domain.Tender, error)
	UpdateVectors(ctx context.Context, ids []int64, nameVectors, customerVectors [][]float32) error
}
