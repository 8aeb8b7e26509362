package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zakupki-tools/tendex/internal/config"
	dbRedis "github.com/zakupki-tools/tendex/internal/db/redis"
	"github.com/zakupki-tools/tendex/internal/domain"
	logpkg "github.com/zakupki-tools/tendex/internal/logger"
	"github.com/zakupki-tools/tendex/internal/metrics"
	"github.com/zakupki-tools/tendex/internal/repository/embcache"
	"github.com/zakupki-tools/tendex/internal/repository/tenderstore"
	chiTransport "github.com/zakupki-tools/tendex/internal/transport/chi"
	ollamaEmb "github.com/zakupki-tools/tendex/internal/transport/ollama"
	openaiEmb "github.com/zakupki-tools/tendex/internal/transport/openai"
	searchuc "github.com/zakupki-tools/tendex/internal/usecase/search"
	vectorizeuc "github.com/zakupki-tools/tendex/internal/usecase/vectorize"
	"github.com/zakupki-tools/tendex/internal/vectorindex"
	"github.com/zakupki-tools/tendex/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting tendex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	store, err := tenderstore.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open tender store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		logger.Fatal("Tender store not ready", zap.Error(err))
	}
	logger.Info("Connected to tender database")

	// Register metrics explicitly (no init())
	metrics.Register()

	// Optional Redis embedding cache
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

		if err := cache.Ping(ctx); err != nil {
			logger.Warn("Embedding cache unreachable, continuing without it", zap.Error(err))
			cache.Close()
			cache = nil
		}
	}

	embedder, embHealth := buildEmbedder(cfg, cache, logger)

	// LLM query interpreter; nil degrades every query to raw text
	var interp searchuc.Interpreter
	if cfg.Interpreter.Enabled {
		interp = openaiEmb.NewInterpreter(&openaiEmb.Config{
			APIKey:  cfg.Embedding.OpenAI.APIKey,
			BaseURL: cfg.Embedding.OpenAI.BaseURL,
			Logger:  logger,
		}, cfg.Interpreter.Model)
		logger.Info("Query interpreter enabled", zap.String("model", cfg.Interpreter.Model))
	}

	var searcher vectorindex.Searcher = vectorindex.BruteForce{}
	if cfg.Search.Strategy == "annoy" {
		searcher = vectorindex.ANN{Trees: cfg.Search.AnnoyTrees}
	}
	logger.Info("Vector search configured",
		zap.String("strategy", cfg.Search.Strategy),
		zap.String("fusion", cfg.Search.Fusion),
	)

	searchSvc := searchuc.New(store, interp, embedder, searcher, logger).
		WithFusion(searchuc.Fusion(cfg.Search.Fusion))
	vectorizeSvc := vectorizeuc.New(store, embedder,
		cfg.Vectorize.BatchSize, cfg.Vectorize.BatchesPerSecond, logger)

	server := chiTransport.NewServer(
		searchSvc, vectorizeSvc, store, embHealth,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the provider and the optional cache decorator.
func buildEmbedder(cfg config.Config, cache *dbRedis.Store, logger *zap.Logger) (domain.Embedder, domain.HealthChecker) {
	var base domain.Embedder
	var health domain.HealthChecker

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
		base, health = emb, emb
	default:
		emb := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
		base, health = emb, emb
	}

	if cache == nil {
		return base, health
	}
	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return embcache.New(base, cache, ttl, metrics.EmbeddingCacheTotal, logger), health
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWith(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
