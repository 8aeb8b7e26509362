package vectorize

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
)

type mockStore struct {
	listFn   func(ctx context.Context, limit int) ([]domain.Tender, error)
	updateFn func(ctx context.Context, ids []int64, nameVectors, customerVectors [][]float32) error
}

func (m *mockStore) ListUnvectorized(ctx context.Context, limit int) ([]domain.Tender, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockStore) UpdateVectors(ctx context.Context, ids []int64, nameVectors, customerVectors [][]float32) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, ids, nameVectors, customerVectors)
	}
	return nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestService(t *testing.T, store *mockStore, emb *mockEmbedder, batchSize int) *Service {
	t.Helper()
	// No throttling in tests.
	return New(store, emb, batchSize, 0, zap.NewNop())
}

func pendingTenders(n int) []domain.Tender {
	out := make([]domain.Tender, n)
	for i := range out {
		out[i] = domain.Tender{
			ID:           int64(i + 1),
			Name:         "Тендер",
			CustomerName: "Заказчик",
		}
	}
	return out
}
