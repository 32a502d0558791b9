package config

import "time"

// DefaultConfig returns a complete configuration with the same defaults each
// package's own withDefaults() would apply, so a zero-value Loader produces
// a config consistent with every component's standalone default.
func DefaultConfig() *Config {
	return &Config{
		TenantID:    "default",
		Memory:      DefaultMemoryConfig(),
		Embedding:   DefaultEmbeddingConfig(),
		LLM:         DefaultLLMConfig(),
		VectorStore: DefaultVectorStoreConfig(),
		FileSystem:  DefaultFileSystemConfig(),
		Layers:      DefaultLayersConfig(),
		Session:     DefaultSessionConfig(),
		Search:      DefaultSearchConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Deduplicate:        true,
		AutoEnhance:        false,
		DedupScanLimit:     100,
		UpdateTopK:         5,
		AutoSummaryChars:   2000,
		MergeThreshold:     0.9,
		MaxConcurrentFacts: 4,
	}
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
	}
}

func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Backend: "memory",
		Qdrant: QdrantConfig{
			BaseURL:   "http://localhost:6333",
			BaseName:  "cortex_memories",
			Dimension: 1536,
			Distance:  "Cosine",
			Timeout:   30 * time.Second,
		},
	}
}

func DefaultFileSystemConfig() FileSystemConfig {
	return FileSystemConfig{
		Backend: "memory",
		Driver:  "sqlite",
		DSN:     "file::memory:?cache=shared",
	}
}

func DefaultLayersConfig() LayersConfig {
	return LayersConfig{
		MaxCharsL0:      1600,
		MaxCharsL1:      6000,
		AggregateCap:    10000,
		BatchSize:       5,
		InterBatchDelay: 2 * time.Second,
		TokenizerModel:  "gpt-4o",
	}
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		LockTTL:   30 * time.Second,
		ItemDelay: 500 * time.Millisecond,
	}
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultLimit:     10,
		DefaultThreshold: 0.5,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "cortexmem-engine",
		SampleRate:   0.1,
	}
}
