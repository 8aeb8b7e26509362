package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/vectorindex"
)

// Fusion selects how the name and customer rankings are combined.
type Fusion string

const (
	// FusionRRF is reciprocal-score fusion, the default.
	FusionRRF Fusion = "rrf"
	// FusionSimple is the coarse per-list vote count.
	FusionSimple Fusion = "simple"
)

// Service orchestrates one search query: ID fast path, query parsing,
// structured filtering, per-field vector search, fusion and enrichment.
type Service struct {
	store    TenderStore
	interp   Interpreter
	embedder domain.Embedder
	searcher vectorindex.Searcher
	fusion   Fusion
	logger   *zap.Logger
}

// New creates a search service. interp may be nil, in which case every
// query runs as an unfiltered raw-text search.
func New(
	store TenderStore,
	interp Interpreter,
	embedder domain.Embedder,
	searcher vectorindex.Searcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		interp:   interp,
		embedder: embedder,
		searcher: searcher,
		fusion:   FusionRRF,
		logger:   logger,
	}
}

// WithFusion overrides the fusion strategy.
func (s *Service) WithFusion(f Fusion) *Service {
	if f == FusionRRF || f == FusionSimple {
		s.fusion = f
	}
	return s
}

// Search answers a free-text query with a ranked result list. The outcome
// is always one of: a populated list, the single "no results" sentinel,
// or an error carrying the underlying collaborator failure, never an
// ambiguous empty list.
func (s *Service) Search(ctx context.Context, rawQuery, regionHint string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidFilter, topK)
	}

	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidFilter)
	}

	// All-digit queries are literal tender IDs: exact lookup, no ranking.
	if isAllDigits(trimmed) {
		return s.searchByID(ctx, trimmed)
	}

	intent := s.parseIntent(ctx, trimmed, regionHint)

	candidates, err := s.store.GetFiltered(ctx, intent.Filter())
	if err != nil {
		return nil, fmt.Errorf("filter tenders: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Warn("no tenders matched structured filters",
			zap.String("query", trimmed),
			zap.String("region", intent.Region),
		)
		return []domain.SearchResult{domain.NoResultsSentinel()}, nil
	}
	s.logger.Info("filtered candidate set",
		zap.Int("candidates", len(candidates)),
		zap.Bool("customer_component", intent.HasCustomer()),
	)

	texts := []string{intent.FreeText}
	if intent.HasCustomer() {
		texts = append(texts, intent.CustomerText)
	}
	queryVectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d query vectors, got %d",
			domain.ErrEmbeddingProviderError, len(texts), len(queryVectors))
	}

	nameMatches := s.searcher.Search(queryVectors[0], nameCandidates(candidates), topK)

	fused := nameMatches
	if intent.HasCustomer() {
		// Customer match is a secondary signal: it contributes at most
		// half the candidate set, never the full primary breadth.
		customerMatches := s.searcher.Search(
			queryVectors[1], customerCandidates(candidates), len(candidates)/2,
		)
		switch s.fusion {
		case FusionSimple:
			fused = FuseSimple(nameMatches, customerMatches)
		default:
			fused = FuseRRF(nameMatches, customerMatches, rrfK)
		}
	}

	results := s.enrich(fused, candidates, topK)
	if len(results) == 0 {
		// Candidates existed but none carried vectors yet: a valid empty
		// outcome, reported through the sentinel like any zero-match case.
		s.logger.Warn("candidate set has no embedded records", zap.Int("candidates", len(candidates)))
		return []domain.SearchResult{domain.NoResultsSentinel()}, nil
	}

	s.logger.Info("returning ranked tenders", zap.Int("results", len(results)))
	return results, nil
}

func (s *Service) searchByID(ctx context.Context, digits string) ([]domain.SearchResult, error) {
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: tender id %q out of range", domain.ErrInvalidFilter, digits)
	}

	tender, err := s.store.GetByID(ctx, id)
	switch {
	case err == nil:
		return []domain.SearchResult{domain.ResultFromTender(tender, 1)}, nil
	case errors.Is(err, domain.ErrTenderNotFound):
		return []domain.SearchResult{domain.NoResultsSentinel()}, nil
	default:
		return nil, fmt.Errorf("get tender by id: %w", err)
	}
}

// parseIntent delegates to the interpreter and degrades to a raw-text
// intent on any failure: parsing problems never abort a search.
func (s *Service) parseIntent(ctx context.Context, rawQuery, regionHint string) domain.Intent {
	if s.interp == nil {
		return domain.Intent{FreeText: rawQuery}
	}

	intent, err := s.interp.Parse(ctx, rawQuery, regionHint)
	if err != nil {
		s.logger.Warn("query parse failed, falling back to raw text",
			zap.String("query", rawQuery),
			zap.Error(err),
		)
		return domain.Intent{FreeText: rawQuery}
	}
	if intent.FreeText == "" {
		intent.FreeText = rawQuery
	}
	return intent
}

// enrich resolves fused matches back to full records, skipping ids that
// fell outside the candidate set, and stops once topK results are built.
func (s *Service) enrich(fused []vectorindex.Match, candidates []domain.Tender, topK int) []domain.SearchResult {
	byID := make(map[int64]domain.Tender, len(candidates))
	for _, t := range candidates {
		byID[t.ID] = t
	}

	results := make([]domain.SearchResult, 0, topK)
	for _, m := range fused {
		tender, ok := byID[m.ID]
		if !ok {
			s.logger.Warn("fused ranking referenced unknown tender", zap.Int64("id", m.ID))
			continue
		}
		results = append(results, domain.ResultFromTender(tender, m.Score))
		if len(results) == topK {
			break
		}
	}
	return results
}

func nameCandidates(tenders []domain.Tender) []vectorindex.Candidate {
	out := make([]vectorindex.Candidate, len(tenders))
	for i, t := range tenders {
		out[i] = vectorindex.Candidate{ID: t.ID, Vector: t.NameVector}
	}
	return out
}

func customerCandidates(tenders []domain.Tender) []vectorindex.Candidate {
	out := make([]vectorindex.Candidate, len(tenders))
	for i, t := range tenders {
		out[i] = vectorindex.Candidate{ID: t.ID, Vector: t.CustomerNameVector}
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
