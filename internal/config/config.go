package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"webtracker/internal/tracker"
)

// Vector store backends.
const (
	BackendQdrant  = "qdrant"
	BackendChromem = "chromem"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort string
	DBPath  string

	VectorBackend    string
	QdrantURL        string
	VectorCollection string
	VectorSize       int
	ChromemPath      string

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingRateLimit float64

	VersionPolicy      tracker.Policy
	StoreMaxRetries    int
	StoreRetryBackoff  time.Duration
	SearchDefaultLimit int
	ReindexWorkers     int

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is
// loaded first. Environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if cfg.VectorBackend == BackendChromem && cfg.ChromemPath != "" {
		if err := os.MkdirAll(cfg.ChromemPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector directory: %w", err)
		}
	}
	return cfg, nil
}

func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		APIPort:            getEnv("API_PORT", "9000"),
		DBPath:             getEnv("DB_PATH", "./data/webtracker.db"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		VectorCollection:   getEnv("VECTOR_COLLECTION", "web_history"),
		ChromemPath:        os.Getenv("CHROMEM_PATH"),
		EmbeddingProvider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)),
		EmbeddingBaseURL:   os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    os.Getenv("EMBEDDING_API_KEY"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
	if _, set := os.LookupEnv("CHROMEM_PATH"); !set {
		cfg.ChromemPath = "./data/vectors"
	}
	// Ollama has its own default endpoint.
	if cfg.EmbeddingBaseURL == "" && cfg.EmbeddingProvider == ProviderOpenAI {
		cfg.EmbeddingBaseURL = "http://localhost:8081"
	}

	switch cfg.VectorBackend {
	case BackendQdrant, BackendChromem:
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendQdrant, BackendChromem, cfg.VectorBackend)
	}
	switch cfg.EmbeddingProvider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return nil, fmt.Errorf("EMBEDDING_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, cfg.EmbeddingProvider)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	// VECTOR_SIZE must match the output size of the embedding model. Changing
	// it requires recreating the collection.
	vectorSizeStr := os.Getenv("VECTOR_SIZE")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	cfg.VectorSize = vectorSize

	if cfg.VersionPolicy, err = tracker.ParsePolicy(os.Getenv("VERSION_POLICY")); err != nil {
		return nil, fmt.Errorf("VERSION_POLICY: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.EmbeddingRateLimit, err = getFloat("EMBEDDING_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.StoreMaxRetries, err = getInt("STORE_MAX_RETRIES", 3, 0); err != nil {
		return nil, err
	}
	if cfg.SearchDefaultLimit, err = getInt("SEARCH_DEFAULT_LIMIT", 5, 1); err != nil {
		return nil, err
	}
	if cfg.ReindexWorkers, err = getInt("REINDEX_WORKERS", 4, 1); err != nil {
		return nil, err
	}
	backoff := getEnv("STORE_RETRY_BACKOFF", "200ms")
	if cfg.StoreRetryBackoff, err = time.ParseDuration(backoff); err != nil || cfg.StoreRetryBackoff < 0 {
		return nil, fmt.Errorf("STORE_RETRY_BACKOFF must be a non-negative duration, got %q", backoff)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue, minValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n < minValue {
		return 0, fmt.Errorf("%s must be at least %d, got %d", key, minValue, n)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return f, nil
}
