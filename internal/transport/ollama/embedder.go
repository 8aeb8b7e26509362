// Package ollama provides an embedding provider backed by a locally
// hosted Ollama model, for running without an external API.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/domain"
	"github.com/zakupki-tools/tendex/internal/metrics"
)

const providerName = "ollama"

// Embedder wraps a langchaingo Ollama embedder behind domain.Embedder.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *zap.Logger
}

// Config holds the local provider settings.
type Config struct {
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewEmbedder creates an Ollama-backed embedding provider.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Embedder{
		embedder: emb,
		model:    cfg.Model,
		logger:   cfg.Logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, "api_error").Inc()
		return nil, fmt.Errorf("ollama embed: %v: %w", err, domain.ErrEmbeddingProviderError)
	}
	if len(vecs) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.model, "bad_response").Inc()
		return nil, fmt.Errorf("ollama returned %d vectors for %d texts: %w",
			len(vecs), len(texts), domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.model).Observe(duration.Seconds())

	return vecs, nil
}

// HealthCheck embeds a short probe text to verify the model is loaded.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.embedder.EmbedQuery(ctx, "ping"); err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	return nil
}
