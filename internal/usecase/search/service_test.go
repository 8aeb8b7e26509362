package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zakupki-tools/tendex/internal/domain"
)

func TestSearch_IDFastPath_Found(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	price := 1500.0
	store.getByIDFn = func(_ context.Context, id int64) (domain.Tender, error) {
		if id != 12345 {
			t.Fatalf("unexpected id %d", id)
		}
		return domain.Tender{ID: 12345, Name: "Ремонт кровли", Price: &price}, nil
	}

	results, err := svc.Search(context.Background(), "12345", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(results))
	}
	if results[0].ID != 12345 || results[0].SimilarityScore != 1 {
		t.Errorf("got id=%d score=%v, want id=12345 score=1", results[0].ID, results[0].SimilarityScore)
	}
	if results[0].Price != 1500 {
		t.Errorf("price = %v, want 1500", results[0].Price)
	}
}

func TestSearch_IDFastPath_MissReturnsSentinel(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	results, err := svc.Search(context.Background(), " 12345 ", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected sentinel as single result, got %d results", len(results))
	}
	r := results[0]
	if !r.NoResults || r.ID != domain.NoResultsID || r.SimilarityScore != 0 {
		t.Errorf("not a sentinel: %+v", r)
	}
}

func TestSearch_IDFastPath_StoreErrorPropagates(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.getByIDFn = func(context.Context, int64) (domain.Tender, error) {
		return domain.Tender{}, fmt.Errorf("query: %w", domain.ErrStoreUnavailable)
	}

	_, err := svc.Search(context.Background(), "42", "", 10)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Search(context.Background(), "   ", "", 10)
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected invalid filter error, got %v", err)
	}
}

func TestSearch_ZeroCandidatesReturnsSentinel(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.getFilteredFn = func(context.Context, domain.TenderFilter) ([]domain.Tender, error) {
		return nil, nil
	}

	results, err := svc.Search(context.Background(), "ремонт дорог", "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || !results[0].NoResults {
		t.Fatalf("expected sentinel, got %+v", results)
	}
}

func TestSearch_ParseFailureDegradesToRawText(t *testing.T) {
	svc, store, interp, _ := newTestService(t)
	interp.parseFn = func(context.Context, string, string) (domain.Intent, error) {
		return domain.Intent{}, domain.ErrInterpreterError
	}
	var gotFilter domain.TenderFilter
	store.getFilteredFn = func(_ context.Context, f domain.TenderFilter) ([]domain.Tender, error) {
		gotFilter = f
		return []domain.Tender{axisTender(1, 0)}, nil
	}

	results, err := svc.Search(context.Background(), "поставка огурцов", "", 5)
	if err != nil {
		t.Fatalf("parse failure must not abort search: %v", err)
	}
	if gotFilter.Region != "" || gotFilter.MinPrice != nil || len(gotFilter.Keywords) != 0 {
		t.Errorf("degraded search must be unfiltered, got %+v", gotFilter)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Errorf("expected the single candidate, got %+v", results)
	}
}

func TestSearch_EmptyParsedFreeTextFallsBackToRawQuery(t *testing.T) {
	svc, store, interp, embed := newTestService(t)
	interp.parseFn = func(context.Context, string, string) (domain.Intent, error) {
		return domain.Intent{Region: "78"}, nil // no free text
	}
	store.getFilteredFn = func(context.Context, domain.TenderFilter) ([]domain.Tender, error) {
		return []domain.Tender{axisTender(1, 0)}, nil
	}
	var embedded []string
	embed.embedFn = func(_ context.Context, texts []string) ([][]float32, error) {
		embedded = texts
		return [][]float32{{1, 0, 0}}, nil
	}

	if _, err := svc.Search(context.Background(), "дизайн", "", 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(embedded) != 1 || embedded[0] != "дизайн" {
		t.Errorf("expected raw query to be embedded, got %v", embedded)
	}
}

func TestSearch_EmbedderErrorPropagates(t *testing.T) {
	svc, store, _, embed := newTestService(t)
	store.getFilteredFn = func(context.Context, domain.TenderFilter) ([]domain.Tender, error) {
		return []domain.Tender{axisTender(1, 0)}, nil
	}
	embed.embedFn = func(context.Context, []string) ([][]float32, error) {
		return nil, fmt.Errorf("api: %w", domain.ErrEmbeddingProviderError)
	}

	_, err := svc.Search(context.Background(), "самолет", "", 5)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected embedding provider error, got %v", err)
	}
}

func TestSearch_UnvectorizedCandidatesReturnSentinel(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	store.getFilteredFn = func(context.Context, domain.TenderFilter) ([]domain.Tender, error) {
		// Records exist but the vectorization job has not reached them.
		return []domain.Tender{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, nil
	}

	results, err := svc.Search(context.Background(), "тапки", "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || !results[0].NoResults {
		t.Fatalf("expected sentinel for fully-unvectorized candidates, got %+v", results)
	}
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	tenders := make([]domain.Tender, 10)
	for i := range tenders {
		tenders[i] = axisTender(int64(i+1), 0)
	}
	store.getFilteredFn = func(context.Context, domain.TenderFilter) ([]domain.Tender, error) {
		return tenders, nil
	}

	results, err := svc.Search(context.Background(), "вебсайты", "", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected exactly 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].SimilarityScore > results[i-1].SimilarityScore {
			t.Errorf("not sorted at %d", i)
		}
	}
}

func TestSearch_CustomerComponentTriggersFusion(t *testing.T) {
	svc, store, interp, embed := newTestService(t)
	interp.parseFn = func(_ context.Context, raw, _ string) (domain.Intent, error) {
		return domain.Intent{FreeText: "ремонт дорог", CustomerText: "ООО Стройсервис", Region: "77"}, nil
	}

	// 50 candidates: 40 carry name vectors, 30 of those also customer vectors.
	tenders := make([]domain.Tender, 50)
	for i := range tenders {
		id := int64(i + 1)
		td := domain.Tender{ID: id, Name: fmt.Sprintf("тендер %d", id), Region: "77", DateAdded: "2025-01-01"}
		if i < 40 {
			td.NameVector = []float32{1, float32(i) / 40, 0}
		}
		if i < 30 {
			td.CustomerNameVector = []float32{0, 1, float32(i) / 30}
		}
		tenders[i] = td
	}
	var gotFilter domain.TenderFilter
	store.getFilteredFn = func(_ context.Context, f domain.TenderFilter) ([]domain.Tender, error) {
		gotFilter = f
		return tenders, nil
	}
	embed.embedFn = func(_ context.Context, texts []string) ([][]float32, error) {
		if len(texts) != 2 {
			t.Fatalf("expected name + customer texts, got %v", texts)
		}
		return [][]float32{{1, 0.2, 0}, {0, 1, 0.4}}, nil
	}

	results, err := svc.Search(context.Background(), "ремонт дорог в Москве от ООО Стройсервис", "77", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotFilter.Region != "77" {
		t.Errorf("region filter not applied: %+v", gotFilter)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results after truncation, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].SimilarityScore > results[i-1].SimilarityScore {
			t.Errorf("fused order violated at %d", i)
		}
	}
	// Every returned id must come from at least one intermediate list,
	// i.e. carry at least one vector.
	for _, r := range results {
		tender := tenders[r.ID-1]
		if tender.NameVector == nil && tender.CustomerNameVector == nil {
			t.Errorf("id %d has no vectors yet was returned", r.ID)
		}
	}
}

func TestSearch_NilInterpreterRunsUnfiltered(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	svc.interp = nil
	store.getFilteredFn = func(_ context.Context, f domain.TenderFilter) ([]domain.Tender, error) {
		if f.Region != "" {
			t.Fatalf("expected unfiltered query, got %+v", f)
		}
		return []domain.Tender{axisTender(1, 0)}, nil
	}

	results, err := svc.Search(context.Background(), "отправка смс", "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearch_InvalidTopK(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Search(context.Background(), "smth", "", 0); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected invalid filter error, got %v", err)
	}
}
