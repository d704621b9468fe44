package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"webtracker/internal/tracker"
)

var envVars = []string{
	"API_PORT", "DB_PATH", "VECTOR_BACKEND", "QDRANT_URL", "VECTOR_COLLECTION", "VECTOR_SIZE",
	"CHROMEM_PATH", "EMBEDDING_PROVIDER", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
	"EMBEDDING_API_KEY", "EMBEDDING_RATE_LIMIT", "VERSION_POLICY", "STORE_MAX_RETRIES",
	"STORE_RETRY_BACKOFF", "SEARCH_DEFAULT_LIMIT", "REINDEX_WORKERS", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable the loader reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		wantErr     bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{"VECTOR_SIZE": "768"},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != "9000" || cfg.DBPath != "./data/webtracker.db" {
					t.Errorf("port/db = %q/%q", cfg.APIPort, cfg.DBPath)
				}
				if cfg.VectorBackend != BackendQdrant || cfg.VectorCollection != "web_history" || cfg.VectorSize != 768 {
					t.Errorf("vector config = %+v", cfg)
				}
				if cfg.ChromemPath != "./data/vectors" {
					t.Errorf("ChromemPath = %q", cfg.ChromemPath)
				}
				if cfg.EmbeddingProvider != ProviderOpenAI || cfg.EmbeddingBaseURL != "http://localhost:8081" {
					t.Errorf("embedding config = %q %q", cfg.EmbeddingProvider, cfg.EmbeddingBaseURL)
				}
				if cfg.VersionPolicy != tracker.PolicyMax {
					t.Errorf("VersionPolicy = %q, want max", cfg.VersionPolicy)
				}
				if cfg.StoreMaxRetries != 3 || cfg.StoreRetryBackoff != 200*time.Millisecond {
					t.Errorf("retry config = %d %v", cfg.StoreMaxRetries, cfg.StoreRetryBackoff)
				}
				if cfg.SearchDefaultLimit != 5 || cfg.ReindexWorkers != 4 || cfg.EmbeddingRateLimit != 0 {
					t.Errorf("limits = %d %d %v", cfg.SearchDefaultLimit, cfg.ReindexWorkers, cfg.EmbeddingRateLimit)
				}
				if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
					t.Errorf("log config = %v %q", cfg.LogLevel, cfg.LogFormat)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"VECTOR_SIZE":          "384",
				"VECTOR_BACKEND":       "Chromem",
				"CHROMEM_PATH":         "",
				"EMBEDDING_PROVIDER":   "ollama",
				"EMBEDDING_RATE_LIMIT": "2.5",
				"VERSION_POLICY":       "increment",
				"STORE_MAX_RETRIES":    "0",
				"STORE_RETRY_BACKOFF":  "1s",
				"REINDEX_WORKERS":      "8",
				"LOG_LEVEL":            "debug",
				"LOG_FORMAT":           "json",
			},
			checkConfig: func(t *testing.T, cfg *Config) {
				if cfg.VectorBackend != BackendChromem || cfg.ChromemPath != "" {
					t.Errorf("backend = %q path = %q, want in-memory chromem", cfg.VectorBackend, cfg.ChromemPath)
				}
				if cfg.EmbeddingProvider != ProviderOllama || cfg.EmbeddingBaseURL != "" {
					t.Errorf("embedding = %q %q, want ollama with its default url", cfg.EmbeddingProvider, cfg.EmbeddingBaseURL)
				}
				if cfg.VersionPolicy != tracker.PolicyIncrement || cfg.StoreMaxRetries != 0 || cfg.StoreRetryBackoff != time.Second {
					t.Errorf("policy/retries = %q %d %v", cfg.VersionPolicy, cfg.StoreMaxRetries, cfg.StoreRetryBackoff)
				}
				if cfg.EmbeddingRateLimit != 2.5 || cfg.ReindexWorkers != 8 {
					t.Errorf("rate/workers = %v %d", cfg.EmbeddingRateLimit, cfg.ReindexWorkers)
				}
				if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
					t.Errorf("log = %v %q", cfg.LogLevel, cfg.LogFormat)
				}
			},
		},
		{name: "missing VECTOR_SIZE", env: map[string]string{}, wantErr: true},
		{name: "invalid VECTOR_SIZE", env: map[string]string{"VECTOR_SIZE": "big"}, wantErr: true},
		{name: "zero VECTOR_SIZE", env: map[string]string{"VECTOR_SIZE": "0"}, wantErr: true},
		{name: "unknown backend", env: map[string]string{"VECTOR_SIZE": "8", "VECTOR_BACKEND": "pinecone"}, wantErr: true},
		{name: "unknown provider", env: map[string]string{"VECTOR_SIZE": "8", "EMBEDDING_PROVIDER": "cohere"}, wantErr: true},
		{name: "unknown policy", env: map[string]string{"VECTOR_SIZE": "8", "VERSION_POLICY": "latest"}, wantErr: true},
		{name: "unknown log level", env: map[string]string{"VECTOR_SIZE": "8", "LOG_LEVEL": "loud"}, wantErr: true},
		{name: "unknown log format", env: map[string]string{"VECTOR_SIZE": "8", "LOG_FORMAT": "xml"}, wantErr: true},
		{name: "negative retries", env: map[string]string{"VECTOR_SIZE": "8", "STORE_MAX_RETRIES": "-1"}, wantErr: true},
		{name: "bad backoff", env: map[string]string{"VECTOR_SIZE": "8", "STORE_RETRY_BACKOFF": "soon"}, wantErr: true},
		{name: "zero workers", env: map[string]string{"VECTOR_SIZE": "8", "REINDEX_WORKERS": "0"}, wantErr: true},
		{name: "negative rate", env: map[string]string{"VECTOR_SIZE": "8", "EMBEDDING_RATE_LIMIT": "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := fromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("fromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checkConfig != nil {
				tt.checkConfig(t, cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	t.Chdir(tmp)

	dbPath := filepath.Join(tmp, "nested", "db", "webtracker.db")
	vecPath := filepath.Join(tmp, "vectors")
	t.Setenv("VECTOR_SIZE", "16")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("VECTOR_BACKEND", "chromem")
	t.Setenv("CHROMEM_PATH", vecPath)

	if _, err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, dir := range []string{filepath.Dir(dbPath), vecPath} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	tmp := t.TempDir()
	sub := filepath.Join(tmp, "cmd", "api")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	env := "VECTOR_SIZE=32\nAPI_PORT=7000\nDB_PATH=" + filepath.Join(tmp, "data", "x.db") + "\n"
	if err := os.WriteFile(filepath.Join(tmp, ".env"), []byte(env), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)
	// Explicit variables win over .env values.
	t.Setenv("API_PORT", "7100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("VECTOR_SIZE")
		_ = os.Unsetenv("DB_PATH")
	})
	if cfg.VectorSize != 32 {
		t.Errorf("VectorSize = %d, want 32 from .env", cfg.VectorSize)
	}
	if cfg.APIPort != "7100" {
		t.Errorf("APIPort = %q, want the explicit 7100", cfg.APIPort)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WEBTRACKER_TEST_VAR", "value")
	if got := getEnv("WEBTRACKER_TEST_VAR", "default"); got != "value" {
		t.Errorf("getEnv() = %q, want value", got)
	}
	if got := getEnv("WEBTRACKER_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want default", got)
	}
}
