package search

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/vectorindex"
)

// mockStore implements TenderStore with overridable function fields.
type mockStore struct {
	getByIDFn     func(ctx context.Context, id int64) (domain.Tender, error)
	getFilteredFn func(ctx context.Context, f domain.TenderFilter) ([]domain.Tender, error)
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (domain.Tender, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return domain.Tender{}, domain.ErrTenderNotFound
}

func (m *mockStore) GetFiltered(ctx context.Context, f domain.TenderFilter) ([]domain.Tender, error) {
	if m.getFilteredFn != nil {
		return m.getFilteredFn(ctx, f)
	}
	return nil, nil
}

// mockInterpreter implements Interpreter.
type mockInterpreter struct {
	parseFn func(ctx context.Context, rawQuery, regionHint string) (domain.Intent, error)
}

func (m *mockInterpreter) Parse(ctx context.Context, rawQuery, regionHint string) (domain.Intent, error) {
	if m.parseFn != nil {
		return m.parseFn(ctx, rawQuery, regionHint)
	}
	return domain.Intent{FreeText: rawQuery}, nil
}

// mockEmbedder returns a fixed vector per input text.
type mockEmbedder struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, texts)
	}
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func newTestService(t *testing.T) (*Service, *mockStore, *mockInterpreter, *mockEmbedder) {
	t.Helper()
	store := &mockStore{}
	interp := &mockInterpreter{}
	embed := &mockEmbedder{}
	svc := New(store, interp, embed, vectorindex.BruteForce{}, zap.NewNop())
	return svc, store, interp, embed
}

func floatPtr(f float64) *float64 { return &f }

// axisTender builds a tender whose name vector points along the given axis.
func axisTender(id int64, axis int) domain.Tender {
	vec := make([]float32, 3)
	vec[axis] = 1
	return domain.Tender{
		ID:         id,
		Name:       "tender",
		Region:     "77",
		DateAdded:  "2025-01-01",
		NameVector: vec,
	}
}
