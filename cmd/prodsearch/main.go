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

	"github.com/catalogix/prodsearch/internal/config"
	dbRedis "github.com/catalogix/prodsearch/internal/db/redis"
	"github.com/catalogix/prodsearch/internal/domain"
	logpkg "github.com/catalogix/prodsearch/internal/logger"
	"github.com/catalogix/prodsearch/internal/metrics"
	catalogrepo "github.com/catalogix/prodsearch/internal/repository/catalog"
	"github.com/catalogix/prodsearch/internal/repository/embcache"
	qdrantrepo "github.com/catalogix/prodsearch/internal/repository/qdrant"
	chiTransport "github.com/catalogix/prodsearch/internal/transport/chi"
	openaiTransport "github.com/catalogix/prodsearch/internal/transport/openai"
	healthuc "github.com/catalogix/prodsearch/internal/usecase/health"
	ingestuc "github.com/catalogix/prodsearch/internal/usecase/ingest"
	searchuc "github.com/catalogix/prodsearch/internal/usecase/search"
	"github.com/catalogix/prodsearch/internal/version"
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

	logger.Info("Starting prodsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("qdrant_host", cfg.Vectors.Host),
		zap.String("collection", cfg.Vectors.Collection),
	)

	ctx := context.Background()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Relational catalog
	catalog, err := catalogrepo.New(ctx, cfg.Catalog.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to catalog database", zap.Error(err))
	}
	defer catalog.Close()
	logger.Info("Connected to catalog database")

	// Vector store
	vectors, err := qdrantrepo.New(&qdrantrepo.Config{
		Host:       cfg.Vectors.Host,
		Port:       cfg.Vectors.Port,
		APIKey:     cfg.Vectors.APIKey,
		UseTLS:     cfg.Vectors.UseTLS,
		Collection: cfg.Vectors.Collection,
		VectorSize: cfg.Vectors.VectorSize,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Failed to connect to vector store", zap.Error(err))
	}
	defer vectors.Close()
	logger.Info("Connected to vector store")

	// Embedder with optional Redis cache
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Dimensions: cfg.OpenAI.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = baseEmbedder
	if len(cfg.Cache.Addrs) > 0 {
		cache, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to connect to embedding cache", zap.Error(err))
		}
		defer cache.Close()

		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		embedder = embcache.New(baseEmbedder, cache, ttl, metrics.EmbeddingCacheTotal, logger)
		logger.Info("Embedding cache enabled", zap.Duration("ttl", ttl))
	}

	analyzer := openaiTransport.NewAnalyzer(&openaiTransport.AnalyzerConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.AnalyzerModel,
		Logger:  logger,
	})

	// Use case services
	searchSvc := searchuc.New(analyzer, embedder, vectors, catalog, searchuc.Config{
		RetrievalSize: cfg.Search.RetrievalSize,
		RRFK:          cfg.Search.RRFK,
	}, logger)

	ingestSvc, err := ingestuc.New(catalog, embedder, vectors, searchSvc, ingestuc.Config{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingestion service", zap.Error(err))
	}
	defer ingestSvc.Close()

	healthSvc := healthuc.New(vectors, catalog, baseEmbedder)

	// HTTP server
	server := chiTransport.NewServer(searchSvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
