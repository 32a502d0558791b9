package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.TenantID)
	assert.True(t, cfg.Memory.Deduplicate)
	assert.Equal(t, 5, cfg.Memory.UpdateTopK)
	assert.Equal(t, 4, cfg.Memory.MaxConcurrentFacts)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)

	assert.Equal(t, "memory", cfg.VectorStore.Backend)
	assert.Equal(t, "Cosine", cfg.VectorStore.Qdrant.Distance)

	assert.Equal(t, "memory", cfg.FileSystem.Backend)

	assert.Equal(t, 1600, cfg.Layers.MaxCharsL0)
	assert.Equal(t, 6000, cfg.Layers.MaxCharsL1)

	assert.Equal(t, 30*time.Second, cfg.Session.LockTTL)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoaderLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoaderLoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
tenant_id: "acme"
memory:
  update_top_k: 8
  max_concurrent_facts: 2
embedding:
  provider: "local"
  dimensions: 768
vector_store:
  backend: "qdrant"
log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, 8, cfg.Memory.UpdateTopK)
	assert.Equal(t, 2, cfg.Memory.MaxConcurrentFacts)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoaderLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"CORTEXMEM_TENANT_ID":                  "env-tenant",
		"CORTEXMEM_MEMORY_UPDATE_TOP_K":         "9",
		"CORTEXMEM_MEMORY_MAX_CONCURRENT_FACTS": "7",
		"CORTEXMEM_LOG_LEVEL":                   "warn",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "env-tenant", cfg.TenantID)
	assert.Equal(t, 9, cfg.Memory.UpdateTopK)
	assert.Equal(t, 7, cfg.Memory.MaxConcurrentFacts)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoaderEnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	require.NoError(t, os.WriteFile(configPath, []byte(`
tenant_id: "yaml-tenant"
log:
  level: "debug"
`), 0644))

	os.Setenv("CORTEXMEM_TENANT_ID", "env-tenant")
	defer os.Unsetenv("CORTEXMEM_TENANT_ID")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "env-tenant", cfg.TenantID)
	assert.Equal(t, "debug", cfg.Log.Level) // unset by env, YAML value survives
}

func TestLoaderCustomEnvPrefix(t *testing.T) {
	os.Setenv("MYAPP_TENANT_ID", "custom-prefix-tenant")
	defer os.Unsetenv("MYAPP_TENANT_ID")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "custom-prefix-tenant", cfg.TenantID)
}

func TestLoaderWithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Memory.MaxConcurrentFacts > 100 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("CORTEXMEM_MEMORY_MAX_CONCURRENT_FACTS", "999")
	defer os.Unsetenv("CORTEXMEM_MEMORY_MAX_CONCURRENT_FACTS")

	_, err := NewLoader().WithValidator(validator).Load()
	assert.Error(t, err)
}

func TestLoaderNonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "default", cfg.TenantID)
}

func TestLoaderInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("memory:\n  update_top_k: [invalid\n"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "negative merge threshold", modify: func(c *Config) { c.Memory.MergeThreshold = -0.1 }, wantErr: true},
		{name: "merge threshold above 1", modify: func(c *Config) { c.Memory.MergeThreshold = 1.5 }, wantErr: true},
		{name: "zero max concurrent facts", modify: func(c *Config) { c.Memory.MaxConcurrentFacts = 0 }, wantErr: true},
		{name: "zero embedding dimensions", modify: func(c *Config) { c.Embedding.Dimensions = 0 }, wantErr: true},
		{name: "unknown vector store backend", modify: func(c *Config) { c.VectorStore.Backend = "pinecone" }, wantErr: true},
		{name: "unknown filesystem backend", modify: func(c *Config) { c.FileSystem.Backend = "nfs" }, wantErr: true},
		{name: "threshold out of range", modify: func(c *Config) { c.Search.DefaultThreshold = 2.0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustLoadSuccess(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("tenant_id: \"ok\"\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, "ok", cfg.TenantID)
	})
}

func TestMustLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("tenant_id: [bad"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnvFunction(t *testing.T) {
	os.Setenv("CORTEXMEM_TENANT_ID", "env-only-tenant")
	defer os.Unsetenv("CORTEXMEM_TENANT_ID")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-only-tenant", cfg.TenantID)
}
