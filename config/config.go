// Package config centralizes every tunable surface of the memory engine:
// vector store backend selection, the URI filesystem backend, embedding/LLM
// provider credentials, layer generation budgets, session locking, search
// defaults, logging and telemetry. Values load with the usual precedence —
// defaults, then an optional YAML file, then environment variables — via
// Loader.
package config

import "time"

// Config is the engine's complete configuration surface.
type Config struct {
	// TenantID scopes every URI this process reads/writes, allowing several
	// tenants to share one backing store.
	TenantID string `yaml:"tenant_id" env:"TENANT_ID"`

	Memory      MemoryConfig      `yaml:"memory" env:"MEMORY"`
	Embedding   EmbeddingConfig   `yaml:"embedding" env:"EMBEDDING"`
	LLM         LLMConfig         `yaml:"llm" env:"LLM"`
	VectorStore VectorStoreConfig `yaml:"vector_store" env:"VECTOR_STORE"`
	FileSystem  FileSystemConfig  `yaml:"filesystem" env:"FILESYSTEM"`
	Layers      LayersConfig      `yaml:"layers" env:"LAYERS"`
	Session     SessionConfig     `yaml:"session" env:"SESSION"`
	Search      SearchConfig      `yaml:"search" env:"SEARCH"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" env:"TELEMETRY"`
}

// MemoryConfig mirrors memory.Config (spec §4.1).
type MemoryConfig struct {
	Deduplicate        bool    `yaml:"deduplicate" env:"DEDUPLICATE"`
	AutoEnhance        bool    `yaml:"auto_enhance" env:"AUTO_ENHANCE"`
	DedupScanLimit     int     `yaml:"dedup_scan_limit" env:"DEDUP_SCAN_LIMIT"`
	UpdateTopK         int     `yaml:"update_top_k" env:"UPDATE_TOP_K"`
	AutoSummaryChars   int     `yaml:"auto_summary_chars" env:"AUTO_SUMMARY_CHARS"`
	MergeThreshold     float64 `yaml:"merge_threshold" env:"MERGE_THRESHOLD"`
	MaxConcurrentFacts int     `yaml:"max_concurrent_facts" env:"MAX_CONCURRENT_FACTS"`
}

// EmbeddingConfig selects and authenticates the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"PROVIDER"` // "openai", "deterministic" (tests)
	Model      string `yaml:"model" env:"MODEL"`
	Dimensions int    `yaml:"dimensions" env:"DIMENSIONS"`
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
}

// LLMConfig selects and authenticates the chat completion provider used for
// fact extraction, update planning and category extraction.
type LLMConfig struct {
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	Model      string        `yaml:"model" env:"MODEL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// VectorStoreConfig selects the vector store backend (spec §4.5).
type VectorStoreConfig struct {
	Backend string       `yaml:"backend" env:"BACKEND"` // "memory", "qdrant"
	Qdrant  QdrantConfig `yaml:"qdrant" env:"QDRANT"`
}

// QdrantConfig mirrors vectorstore.QdrantConfig.
type QdrantConfig struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	APIKey    string        `yaml:"api_key" env:"API_KEY"`
	BaseName  string        `yaml:"base_name" env:"BASE_NAME"`
	Dimension int           `yaml:"dimension" env:"DIMENSION"`
	Distance  string        `yaml:"distance" env:"DISTANCE"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// FileSystemConfig selects the URI filesystem backend (spec §6).
type FileSystemConfig struct {
	Backend         string `yaml:"backend" env:"BACKEND"` // "memory", "gorm"
	Driver          string `yaml:"driver" env:"DRIVER"`   // "sqlite", "postgres" (gorm backend only)
	DSN             string `yaml:"dsn" env:"DSN"`
	MigrationsPath  string `yaml:"migrations_path" env:"MIGRATIONS_PATH"`
}

// LayersConfig mirrors layers.Config (spec §4.4).
type LayersConfig struct {
	MaxCharsL0      int           `yaml:"max_chars_l0" env:"MAX_CHARS_L0"`
	MaxCharsL1      int           `yaml:"max_chars_l1" env:"MAX_CHARS_L1"`
	AggregateCap    int           `yaml:"aggregate_cap" env:"AGGREGATE_CAP"`
	BatchSize       int           `yaml:"batch_size" env:"BATCH_SIZE"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay" env:"INTER_BATCH_DELAY"`
	TokenizerModel  string        `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`
}

// SessionConfig mirrors session.Config (spec §4.6).
type SessionConfig struct {
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	LockTTL   time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
	ItemDelay time.Duration `yaml:"item_delay" env:"ITEM_DELAY"`
}

// SearchConfig bounds the layered search engine's defaults (spec §4.7).
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit" env:"DEFAULT_LIMIT"`
	DefaultThreshold float64 `yaml:"default_threshold" env:"DEFAULT_THRESHOLD"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTel SDK (internal/telemetry).
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}
