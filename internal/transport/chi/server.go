// Package chi implements the HTTP API: search, tender ingestion, the
// vectorization trigger, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/usecase/vectorize"
)

const maxBatchSize = 1000

// searchService is the consumer interface for the search endpoint (ISP).
type searchService interface {
	Search(ctx context.Context, rawQuery, regionHint string, topK int) ([]domain.SearchResult, error)
}

// vectorizeService triggers a vectorization run.
type vectorizeService interface {
	Run(ctx context.Context, limit int) (vectorize.Stats, error)
}

// tenderWriter ingests tender records.
type tenderWriter interface {
	Upsert(ctx context.Context, tenders []domain.Tender) (int, error)
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	search      searchService
	vectorizer  vectorizeService
	store       tenderWriter
	embHealth   domain.HealthChecker // nil when the provider exposes no health check
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(
	search searchService,
	vectorizer vectorizeService,
	store tenderWriter,
	embHealth domain.HealthChecker,
	defaultTopK, maxTopK int,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:      search,
		vectorizer:  vectorizer,
		store:       store,
		embHealth:   embHealth,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		logger:      logger,
	}
}

// Register mounts all routes on the router. Middleware is the caller's
// responsibility.
func (s *Server) Register(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Post("/tenders", s.handleUpsertTenders)
	r.Post("/vectorize", s.handleVectorize)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type searchRequest struct {
	Query  string `json:"query"`
	Region string `json:"region"`
	TopK   int    `json:"top_k"`
}

// handleSearch handles POST /search. The response is a bare JSON array:
// either ranked results or the single "no results" placeholder.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 0 || topK > s.maxTopK {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("top_k must be between 1 and %d", s.maxTopK))
		return
	}

	results, err := s.search.Search(r.Context(), req.Query, req.Region, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// tenderPayload is the ingestion shape of one tender record.
type tenderPayload struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Price          *float64 `json:"price"`
	LawType        string   `json:"law_type"`
	PurchaseMethod string   `json:"purchase_method"`
	OKPD2Code      string   `json:"okpd2_code"`
	PublishDate    string   `json:"publish_date"`
	EndDate        string   `json:"end_date"`
	ResultsDate    string   `json:"results_date"`
	CustomerINN    string   `json:"customer_inn"`
	CustomerName   string   `json:"customer_name"`
	Region         string   `json:"region"`
	Stage          string   `json:"stage"`
	DateAdded      string   `json:"date_added"`
}

type upsertRequest struct {
	Tenders []tenderPayload `json:"tenders"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

// handleUpsertTenders handles POST /tenders.
func (s *Server) handleUpsertTenders(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if len(req.Tenders) == 0 || len(req.Tenders) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("tenders count must be between 1 and %d", maxBatchSize))
		return
	}

	tenders := make([]domain.Tender, 0, len(req.Tenders))
	for _, p := range req.Tenders {
		if p.ID <= 0 || p.Name == "" {
			writeError(w, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("tender %d: id and name are required", p.ID))
			return
		}
		tenders = append(tenders, domain.Tender{
			ID:             p.ID,
			Name:           p.Name,
			Price:          p.Price,
			LawType:        p.LawType,
			PurchaseMethod: p.PurchaseMethod,
			OKPD2Code:      p.OKPD2Code,
			PublishDate:    p.PublishDate,
			EndDate:        p.EndDate,
			ResultsDate:    p.ResultsDate,
			CustomerINN:    p.CustomerINN,
			CustomerName:   p.CustomerName,
			Region:         p.Region,
			Stage:          p.Stage,
			DateAdded:      p.DateAdded,
		})
	}

	n, err := s.store.Upsert(r.Context(), tenders)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{Upserted: n})
}

type vectorizeRequest struct {
	Limit int `json:"limit"`
}

// handleVectorize handles POST /vectorize. Runs synchronously; the admin
// client is expected to call it with a generous timeout.
func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	var req vectorizeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
			return
		}
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "limit must not be negative")
		return
	}

	stats, err := s.vectorizer.Run(r.Context(), req.Limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := s.store.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if s.embHealth != nil {
		if err := s.embHealth.HealthCheck(r.Context()); err != nil {
			checks["embedding"] = err.Error()
			healthy = false
		} else {
			checks["embedding"] = "ok"
		}
	}

	status, httpStatus := "healthy", http.StatusOK
	if !healthy {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: status, Checks: checks})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleDomainError maps sentinel errors to HTTP statuses without
// exposing internals.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, "validation_failed", domain.ErrInvalidFilter.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", domain.ErrEmbeddingProviderError.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store_unavailable", domain.ErrStoreUnavailable.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
