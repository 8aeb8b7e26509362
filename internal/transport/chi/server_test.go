package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/usecase/vectorize"
)

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestSearch_OK(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.search.searchFn = func(_ context.Context, rawQuery, regionHint string, topK int) ([]domain.SearchResult, error) {
		if rawQuery != "ремонт дорог" || regionHint != "77" || topK != 5 {
			t.Errorf("unexpected args: %q %q %d", rawQuery, regionHint, topK)
		}
		return []domain.SearchResult{
			{ID: 1, Name: "Ремонт дорог", SimilarityScore: 0.91},
		}, nil
	}

	resp := postJSON(t, ts.URL+"/search", `{"query": "ремонт дорог", "region": "77", "top_k": 5}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var results []domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	ts, deps := newTestServer(t)

	var gotTopK int
	deps.search.searchFn = func(_ context.Context, _, _ string, topK int) ([]domain.SearchResult, error) {
		gotTopK = topK
		return []domain.SearchResult{domain.NoResultsSentinel()}, nil
	}

	resp := postJSON(t, ts.URL+"/search", `{"query": "мебель"}`)
	defer resp.Body.Close()

	if gotTopK != 10 {
		t.Fatalf("topK = %d, want server default 10", gotTopK)
	}
}

func TestSearch_NoResultsSentinel(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/search", `{"query": "что-то несуществующее"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sentinel must come back with 200, got %d", resp.StatusCode)
	}

	var results []domain.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || !results[0].NoResults || results[0].ID != domain.NoResultsID {
		t.Fatalf("expected sentinel, got %+v", results)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid filter", domain.ErrInvalidFilter, http.StatusBadRequest},
		{"provider down", domain.ErrEmbeddingProviderError, http.StatusBadGateway},
		{"store down", domain.ErrStoreUnavailable, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, deps := newTestServer(t)
			deps.search.searchFn = func(_ context.Context, _, _ string, _ int) ([]domain.SearchResult, error) {
				return nil, tt.err
			}

			resp := postJSON(t, ts.URL+"/search", `{"query": "мебель"}`)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSearch_TopKAboveMax(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/search", `{"query": "мебель", "top_k": 10000}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpsertTenders(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.writer.upsertFn = func(_ context.Context, tenders []domain.Tender) (int, error) {
		if len(tenders) != 2 {
			t.Errorf("got %d tenders, want 2", len(tenders))
		}
		if tenders[0].ID != 101 || tenders[0].Name != "Поставка бумаги" {
			t.Errorf("unexpected first tender: %+v", tenders[0])
		}
		if tenders[0].Price == nil || *tenders[0].Price != 5000 {
			t.Errorf("price not mapped: %v", tenders[0].Price)
		}
		return 2, nil
	}

	body := `{"tenders": [
		{"id": 101, "name": "Поставка бумаги", "price": 5000, "region": "77", "date_added": "2024-01-01"},
		{"id": 102, "name": "Уборка территории", "region": "50", "date_added": "2024-01-02"}
	]}`
	resp := postJSON(t, ts.URL+"/tenders", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out upsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Upserted != 2 {
		t.Fatalf("upserted = %d, want 2", out.Upserted)
	}
}

func TestUpsertTenders_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, body := range []string{
		`{"tenders": []}`,
		`{"tenders": [{"id": 0, "name": "без id"}]}`,
		`{"tenders": [{"id": 5, "name": ""}]}`,
		`не json`,
	} {
		resp := postJSON(t, ts.URL+"/tenders", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestVectorize(t *testing.T) {
	ts, deps := newTestServer(t)

	deps.vectorizer.runFn = func(_ context.Context, limit int) (vectorize.Stats, error) {
		if limit != 500 {
			t.Errorf("limit = %d, want 500", limit)
		}
		return vectorize.Stats{Processed: 480, Failed: 20}, nil
	}

	resp := postJSON(t, ts.URL+"/vectorize", `{"limit": 500}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats vectorize.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Processed != 480 || stats.Failed != 20 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHealth(t *testing.T) {
	ts, deps := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	deps.writer.pingFn = func(_ context.Context) error {
		return domain.ErrStoreUnavailable
	}
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}
