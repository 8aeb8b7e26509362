// Command tendex-vectorize embeds pending tenders and stores their
// vectors. It is meant to run as a cron job after each tender import.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/config"
	dbRedis "github.com/zakupki-tools/tendex/internal/db/redis"
	"github.com/zakupki-tools/tendex/internal/domain"
	logpkg "github.com/zakupki-tools/tendex/internal/logger"
	"github.com/zakupki-tools/tendex/internal/metrics"
	"github.com/zakupki-tools/tendex/internal/repository/embcache"
	"github.com/zakupki-tools/tendex/internal/repository/tenderstore"
	ollamaEmb "github.com/zakupki-tools/tendex/internal/transport/ollama"
	openaiEmb "github.com/zakupki-tools/tendex/internal/transport/openai"
	vectorizeuc "github.com/zakupki-tools/tendex/internal/usecase/vectorize"
	"github.com/zakupki-tools/tendex/internal/version"
)

func main() {
	limit := flag.Int("limit", 0, "max tenders to vectorize in this run (0 = all)")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tendex vectorization job",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("db_path", cfg.Database.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("limit", *limit),
	)

	store, err := tenderstore.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open tender store", zap.Error(err))
	}
	defer store.Close()

	metrics.Register()

	// SIGTERM stops the run between batches.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cache *dbRedis.Store
	if len(cfg.Cache.Addrs) > 0 {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer cache.Close()
	}

	embedder := buildEmbedder(cfg, cache, logger)

	svc := vectorizeuc.New(store, embedder,
		cfg.Vectorize.BatchSize, cfg.Vectorize.BatchesPerSecond, logger)

	stats, err := svc.Run(ctx, *limit)
	if err != nil {
		logger.Fatal("Vectorization run failed", zap.Error(err))
	}

	logger.Info("Vectorization job done",
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
	)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func buildEmbedder(cfg config.Config, cache *dbRedis.Store, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder

	switch cfg.Embedding.Provider {
	case "ollama":
		emb, err := ollamaEmb.NewEmbedder(&ollamaEmb.Config{
			BaseURL: cfg.Embedding.Ollama.BaseURL,
			Model:   cfg.Embedding.Ollama.Model,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal("Failed to create ollama embedder", zap.Error(err))
		}
		base = emb
	default:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
	}

	if cache == nil {
		return base
	}
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return embcache.New(base, cache, ttl, metrics.EmbeddingCacheTotal, logger)
}
