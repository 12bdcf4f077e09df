// Package config loads configuration from environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Embedding providers.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
)

// Config holds all configuration for the recommendation service
type Config struct {
	// Server
	GRPCPort           int      `env:"GRPC_PORT" envDefault:"9090"`
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8000"`
	Environment        string   `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins     []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Catalog source
	CatalogPath      string `env:"CATALOG_PATH" envDefault:"zomato_data.json"`
	CatalogSourceURL string `env:"CATALOG_SOURCE_URL"`
	CatalogLimit     int    `env:"CATALOG_LIMIT" envDefault:"1000"`
	CatalogPageSize  int    `env:"CATALOG_PAGE_SIZE" envDefault:"100"`
	CatalogDownload  bool   `env:"CATALOG_DOWNLOAD" envDefault:"true"`

	// Embeddings
	EmbedderProvider     string        `env:"EMBEDDER_PROVIDER" envDefault:"hash"`
	EmbeddingDimension   int           `env:"EMBEDDING_DIMENSION" envDefault:"1536"`
	EmbedConcurrency     int           `env:"EMBED_CONCURRENCY" envDefault:"4"`
	EmbedTimeout         time.Duration `env:"EMBED_TIMEOUT" envDefault:"10s"`
	EmbedRateLimit       float64       `env:"EMBED_RATE_LIMIT" envDefault:"0"`
	EmbedBreakerFailures uint32        `env:"EMBED_BREAKER_FAILURES" envDefault:"5"`
	EmbedBreakerCooldown time.Duration `env:"EMBED_BREAKER_COOLDOWN" envDefault:"30s"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`
	OllamaLLMModel       string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3.2"`
	GenerationEnabled    bool   `env:"GENERATION_ENABLED" envDefault:"false"`

	// Retrieval
	RetrievalTimeout   time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"15s"`
	DefaultTopK        int           `env:"DEFAULT_TOP_K" envDefault:"5"`
	MaxTopK            int           `env:"MAX_TOP_K" envDefault:"50"`
	ContextMaxOverview int           `env:"CONTEXT_MAX_OVERVIEW" envDefault:"500"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.EmbedderProvider = strings.ToLower(strings.TrimSpace(cfg.EmbedderProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.EmbedderProvider {
	case ProviderHash, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("EMBEDDER_PROVIDER must be %q or %q, got %q", ProviderHash, ProviderOllama, c.EmbedderProvider))
	}
	if c.EmbedderProvider == ProviderHash && c.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension))
	}
	if c.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TOP_K must be positive, got %d", c.DefaultTopK))
	}
	if c.MaxTopK < c.DefaultTopK {
		errs = append(errs, fmt.Errorf("MAX_TOP_K (%d) must be >= DEFAULT_TOP_K (%d)", c.MaxTopK, c.DefaultTopK))
	}
	if c.EmbedConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency))
	}
	if c.CatalogPath == "" && !c.CatalogDownload {
		errs = append(errs, errors.New("either CATALOG_PATH or CATALOG_DOWNLOAD must be set"))
	}
	for _, p := range []struct {
		name string
		port int
	}{{"HTTP_PORT", c.HTTPPort}, {"GRPC_PORT", c.GRPCPort}} {
		if p.port <= 0 || p.port > 65535 {
			errs = append(errs, fmt.Errorf("%s out of range: %d", p.name, p.port))
		}
	}

	return errors.Join(errs...)
}
