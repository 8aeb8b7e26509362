package chi

import (
	"context"
	"net/http/httptest"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/usecase/vectorize"
)

type mockSearch struct {
	searchFn func(ctx context.Context, rawQuery, regionHint string, topK int) ([]domain.SearchResult, error)
}

func (m *mockSearch) Search(ctx context.Context, rawQuery, regionHint string, topK int) ([]domain.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, rawQuery, regionHint, topK)
	}
	return []domain.SearchResult{domain.NoResultsSentinel()}, nil
}

type mockVectorizer struct {
	runFn func(ctx context.Context, limit int) (vectorize.Stats, error)
}

func (m *mockVectorizer) Run(ctx context.Context, limit int) (vectorize.Stats, error) {
	if m.runFn != nil {
		return m.runFn(ctx, limit)
	}
	return vectorize.Stats{}, nil
}

type mockWriter struct {
	upsertFn func(ctx context.Context, tenders []domain.Tender) (int, error)
	pingFn   func(ctx context.Context) error
}

func (m *mockWriter) Upsert(ctx context.Context, tenders []domain.Tender) (int, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, tenders)
	}
	return len(tenders), nil
}

func (m *mockWriter) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

type testDeps struct {
	search     *mockSearch
	vectorizer *mockVectorizer
	writer     *mockWriter
}

func newTestServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		search:     &mockSearch{},
		vectorizer: &mockVectorizer{},
		writer:     &mockWriter{},
	}
	srv := NewServer(deps.search, deps.vectorizer, deps.writer, nil, 10, 100, zap.NewNop())

	r := gochi.NewRouter()
	srv.Register(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, deps
}
