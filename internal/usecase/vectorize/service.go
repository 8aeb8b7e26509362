// Package vectorize computes and persists embedding vectors for tenders
// that were loaded without them.
package vectorize

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zakupki-tools/tendex/internal/domain"
)

// Stats summarizes one vectorization run.
type Stats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Service embeds tender names and customer names in rate-limited batches.
// A failed batch is counted and skipped so one provider hiccup does not
// abort the whole run.
type Service struct {
	store     Store
	embedder  domain.Embedder
	batchSize int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// New creates the vectorization service. batchesPerSecond throttles
// provider calls; zero or negative disables throttling.
func New(store Store, embedder domain.Embedder, batchSize int, batchesPerSecond float64, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 128
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if batchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(batchesPerSecond), 1)
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		limiter:   limiter,
		logger:    logger,
	}
}

// Run vectorizes all pending tenders. limit caps the total number of
// tenders in this run; zero means no cap.
func (s *Service) Run(ctx context.Context, limit int) (Stats, error) {
	pending, err := s.store.ListUnvectorized(ctx, limit)
	if err != nil {
		return Stats{}, fmt.Errorf("list unvectorized: %w", err)
	}
	if len(pending) == 0 {
		s.logger.Info("No tenders pending vectorization")
		return Stats{}, nil
	}

	s.logger.Info("Starting vectorization",
		zap.Int("pending", len(pending)),
		zap.Int("batch_size", s.batchSize))

	var stats Stats
	for start := 0; start < len(pending); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("rate limiter: %w", err)
		}

		if err := s.processBatch(ctx, batch); err != nil {
			stats.Failed += len(batch)
			s.logger.Warn("Batch vectorization failed",
				zap.Int("offset", start),
				zap.Int("size", len(batch)),
				zap.Error(err))
			continue
		}
		stats.Processed += len(batch)
	}

	s.logger.Info("Vectorization finished",
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// processBatch embeds names and customer names in one provider call each
// and persists the results. Tenders without a customer name keep a NULL
// customer vector.
func (s *Service) processBatch(ctx context.Context, batch []domain.Tender) error {
	names := make([]string, len(batch))
	ids := make([]int64, len(batch))
	for i, t := range batch {
		names[i] = t.Name
		ids[i] = t.ID
	}

	nameVecs, err := s.embedder.Embed(ctx, names)
	if err != nil {
		return fmt.Errorf("embed names: %w", err)
	}
	if len(nameVecs) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d names", len(nameVecs), len(batch))
	}

	var customerTexts []string
	var customerIdx []int
	for i, t := range batch {
		if t.CustomerName != "" {
			customerTexts = append(customerTexts, t.CustomerName)
			customerIdx = append(customerIdx, i)
		}
	}

	customerVecs := make([][]float32, len(batch))
	if len(customerTexts) > 0 {
		vecs, err := s.embedder.Embed(ctx, customerTexts)
		if err != nil {
			return fmt.Errorf("embed customer names: %w", err)
		}
		if len(vecs) != len(customerTexts) {
			return fmt.Errorf("embedder returned %d vectors for %d customer names", len(vecs), len(customerTexts))
		}
		for j, vec := range vecs {
			customerVecs[customerIdx[j]] = vec
		}
	}

	if err := s.store.UpdateVectors(ctx, ids, nameVecs, customerVecs); err != nil {
		return fmt.Errorf("update vectors: %w", err)
	}
	return nil
}
