package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pkgRetry "github.com/raadyn/kb-retrieval/internal/pkg/retry"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR,notEmpty"`

	// Database configuration
	DatabaseURL         string        `env:"DATABASE_URL,notEmpty"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	EmbeddingConnectorCfg EmbeddingConnectorConfig `envPrefix:"EMBEDDING_"`
	IndexConnectorCfg     IndexConnectorConfig     `envPrefix:"INDEX_"`

	// Retrieval and cache tuning
	RetrievalCfg RetrievalConfig `envPrefix:"RETRIEVAL_"`
	CacheCfg     CacheConfig     `envPrefix:"CACHE_"`
	IngestionCfg IngestionConfig `envPrefix:"INGESTION_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL,notEmpty"`

	// Session warmup queries (loaded from JSON file)
	WarmupQueries []string

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS,notEmpty"`

	// Environment (set from flag, not from env var)
	Environment string
}

// EmbeddingConnectorConfig configures the embedding provider client.
type EmbeddingConnectorConfig struct {
	HTTPClientConfig
	Model         string               `env:"MODEL" envDefault:"text-embedding-3-small"`
	Dimensions    int                  `env:"DIMENSIONS" envDefault:"1536"`
	EmbedEndpoint string               `env:"EMBED_ENDPOINT" envDefault:"/embeddings"`
	Retry         pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// IndexConnectorConfig configures the similarity index client.
type IndexConnectorConfig struct {
	HTTPClientConfig
	UpsertEndpoint string               `env:"UPSERT_ENDPOINT" envDefault:"/vectors/upsert"`
	QueryEndpoint  string               `env:"QUERY_ENDPOINT" envDefault:"/query"`
	DeleteEndpoint string               `env:"DELETE_ENDPOINT" envDefault:"/vectors/delete"`
	Retry          pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// HTTPClientConfig is the shared outbound HTTP client tuning block.
type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT,notEmpty"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT,notEmpty"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE,notEmpty"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT,notEmpty"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT,notEmpty"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL,notEmpty"`
}

// RetrievalConfig holds query orchestration tuning.
type RetrievalConfig struct {
	TopKDefault             int           `env:"TOP_K" envDefault:"5"`
	SessionMatchThreshold   float64       `env:"SESSION_MATCH_THRESHOLD" envDefault:"0.70"`
	SessionInactivityWindow time.Duration `env:"SESSION_INACTIVITY_WINDOW" envDefault:"1h"`
	SessionSweepInterval    time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	PrewarmTopKPerQuery     int           `env:"PREWARM_TOP_K" envDefault:"3"`
}

// CacheConfig holds embedding and semantic cache tuning.
type CacheConfig struct {
	EmbeddingCapacity int           `env:"EMBEDDING_CAPACITY" envDefault:"2000"`
	EmbeddingTTL      time.Duration `env:"EMBEDDING_TTL" envDefault:"1h"`
	SemanticCapacity  int           `env:"SEMANTIC_CAPACITY" envDefault:"500"`
	SemanticTTL       time.Duration `env:"SEMANTIC_TTL" envDefault:"30m"`
	SemanticThreshold float64       `env:"SEMANTIC_THRESHOLD" envDefault:"0.92"`
}

// IngestionConfig holds document chunking and index write tuning.
type IngestionConfig struct {
	ChunkSize        int   `env:"CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap     int   `env:"CHUNK_OVERLAP" envDefault:"200"`
	UpsertBatchSize  int   `env:"UPSERT_BATCH_SIZE" envDefault:"100"`
	MaxDocumentCount int   `env:"MAX_DOCUMENT_COUNT" envDefault:"64"`
	MaxDocumentSize  int64 `env:"MAX_DOCUMENT_SIZE" envDefault:"5242880"`
}

// warmupQueries represents the structure of warmup_queries.json
type warmupQueries struct {
	Queries []string `json:"queries"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Load warmup queries from JSON file
	if err := loadWarmupQueries(cfg); err != nil {
		return nil, fmt.Errorf("load warmup queries: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errs []string

	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}

	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errs = append(errs, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	if cfg.IngestionCfg.ChunkSize < 100 || cfg.IngestionCfg.ChunkSize > 8000 {
		errs = append(errs, fmt.Sprintf("INGESTION_CHUNK_SIZE must be between 100 and 8000, got %d", cfg.IngestionCfg.ChunkSize))
	}

	if cfg.IngestionCfg.ChunkOverlap < 0 || cfg.IngestionCfg.ChunkOverlap >= cfg.IngestionCfg.ChunkSize {
		errs = append(errs, fmt.Sprintf("INGESTION_CHUNK_OVERLAP must be between 0 and CHUNK_SIZE(%d), got %d", cfg.IngestionCfg.ChunkSize, cfg.IngestionCfg.ChunkOverlap))
	}

	if cfg.IngestionCfg.UpsertBatchSize < 1 || cfg.IngestionCfg.UpsertBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("INGESTION_UPSERT_BATCH_SIZE must be between 1 and 1000, got %d", cfg.IngestionCfg.UpsertBatchSize))
	}

	if cfg.CacheCfg.EmbeddingCapacity < 1 {
		errs = append(errs, fmt.Sprintf("CACHE_EMBEDDING_CAPACITY must be positive, got %d", cfg.CacheCfg.EmbeddingCapacity))
	}

	if cfg.CacheCfg.SemanticCapacity < 1 || cfg.CacheCfg.SemanticCapacity > 2000 {
		errs = append(errs, fmt.Sprintf("CACHE_SEMANTIC_CAPACITY must be between 1 and 2000, got %d", cfg.CacheCfg.SemanticCapacity))
	}

	if cfg.CacheCfg.SemanticThreshold <= 0 || cfg.CacheCfg.SemanticThreshold > 1 {
		errs = append(errs, fmt.Sprintf("CACHE_SEMANTIC_THRESHOLD must be in (0, 1], got %v", cfg.CacheCfg.SemanticThreshold))
	}

	if cfg.RetrievalCfg.SessionMatchThreshold <= 0 || cfg.RetrievalCfg.SessionMatchThreshold > 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_SESSION_MATCH_THRESHOLD must be in (0, 1], got %v", cfg.RetrievalCfg.SessionMatchThreshold))
	}

	if cfg.RetrievalCfg.TopKDefault < 1 || cfg.RetrievalCfg.TopKDefault > 100 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_TOP_K must be between 1 and 100, got %d", cfg.RetrievalCfg.TopKDefault))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

var defaultWarmupQueries = []string{
	"What products and services do we offer?",
	"How do I handle customer objections about price?",
	"What are the benefits of extended warranty coverage?",
	"GAP insurance coverage and benefits",
	"How to present finance options to customers",
	"Common customer concerns and how to address them",
	"Vehicle service contract features",
	"Compliance requirements for finance and insurance",
}

func loadWarmupQueries(cfg *Config) error {
	configPath := filepath.Join("internal", "config", "warmup_queries.json")

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("Warning: warmup queries file not found at %s, using default queries\n", configPath)
		cfg.WarmupQueries = defaultWarmupQueries
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read warmup queries file: %w", err)
	}

	if len(data) == 0 {
		return fmt.Errorf("warmup queries file is empty: %s", configPath)
	}

	var queriesData warmupQueries
	if err := json.Unmarshal(data, &queriesData); err != nil {
		return fmt.Errorf("parse warmup queries JSON: %w", err)
	}

	if len(queriesData.Queries) == 0 {
		return fmt.Errorf("warmup queries file contains no queries: %s", configPath)
	}

	cfg.WarmupQueries = queriesData.Queries

	fmt.Printf("Loaded %d warmup queries from %s\n", len(cfg.WarmupQueries), configPath)
	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
