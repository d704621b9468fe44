package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webtracker/internal/config"
	"webtracker/internal/embeddings"
	"webtracker/internal/http"
	"webtracker/internal/ingest"
	"webtracker/internal/normalizer"
	"webtracker/internal/query"
	"webtracker/internal/storage"
	"webtracker/internal/tracker"
	"webtracker/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API records web page visits from a browser extension, versions and
// deduplicates their content, and serves version, snapshot and semantic queries.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Web Tracker API
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	store, closeStore, err := newVectorStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer closeStore()
	vectors := vectorstore.NewRetrying(store, cfg.StoreMaxRetries, cfg.StoreRetryBackoff)

	embedder := newEmbedder(cfg)
	// Fail fast when the model's output size does not match the collection.
	if _, err := embeddings.EmbedOne(ctx, embedder, "test"); err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	slog.Info("Embedding client validated", "provider", cfg.EmbeddingProvider, "model", cfg.EmbeddingModelName, "vector_size", cfg.VectorSize)

	versions := tracker.NewTracker(cfg.VersionPolicy)
	slog.Info("Version tracker ready", "policy", versions.Policy())

	pipeline := ingest.NewPipeline(
		db,
		normalizer.New(),
		versions,
		embedder,
		vectors,
		cfg.ReindexWorkers,
	)
	engine := query.NewEngine(storage.NewWebsiteRepo(db), vectors, embedder, cfg.SearchDefaultLimit)

	router := http.NewRouter(&http.Deps{
		DB:       db,
		Pipeline: pipeline,
		Engine:   engine,
		Vectors:  vectors,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}

// newVectorStore opens the configured backend and returns a close function.
func newVectorStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, func(), error) {
	switch cfg.VectorBackend {
	case config.BackendChromem:
		store, err := vectorstore.NewChromemStore(cfg.ChromemPath, cfg.VectorCollection, cfg.VectorSize)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Chromem collection ready", "path", cfg.ChromemPath, "collection", cfg.VectorCollection, "documents", store.Count())
		return store, func() {}, nil

	case config.BackendQdrant:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.VectorCollection, cfg.VectorSize)
		if err != nil {
			return nil, nil, fmt.Errorf("create qdrant client: %w", err)
		}
		if err := store.EnsureCollection(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ensure qdrant collection: %w", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.VectorCollection, "vector_size", cfg.VectorSize)
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func newEmbedder(cfg *config.Config) embeddings.Embedder {
	if cfg.EmbeddingProvider == config.ProviderOllama {
		return embeddings.NewOllamaEmbedder(cfg.EmbeddingModelName, cfg.EmbeddingBaseURL, cfg.VectorSize, cfg.EmbeddingRateLimit)
	}
	return embeddings.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.VectorSize, cfg.EmbeddingRateLimit)
}
