package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Memory.Driver)
	assert.Equal(t, "memory.json", cfg.Memory.Path)
	assert.Equal(t, "failed_hosts.txt", cfg.Hosts.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrentTopics)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "jina", cfg.Search.Provider)
	assert.Equal(t, 3, cfg.Search.MaxAttempts)
	assert.Equal(t, 500, cfg.Search.RetryBaseMS)
	assert.InDelta(t, 2.0, cfg.Fetch.QPS, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
memory:
  driver: sqlite
  path: /var/lib/agent/memory.db
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_topics: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Memory.Driver)
	assert.Equal(t, "/var/lib/agent/memory.db", cfg.Memory.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentTopics)
	// Defaults still apply for unset values
	assert.Equal(t, "jina", cfg.Search.Provider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
memory:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AGENT_MEMORY_DRIVER", "postgres")
	t.Setenv("AGENT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Memory.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("AGENT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Memory.Driver = "file"
	cfg.Memory.Path = "memory.json"
	cfg.Search.Provider = "jina"
	cfg.Jina.Key = "jina_key"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Batch.MaxConcurrentTopics = 3
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateResearch_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("research"))
}

func TestValidateResearch_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Jina.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("research")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "jina.key is required")
}

func TestValidateResearch_PerplexityProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Search.Provider = "perplexity"
	cfg.Jina.Key = ""

	err := cfg.Validate("research")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "perplexity.key is required")

	cfg.Perplexity.Key = "pplx-key"
	assert.NoError(t, cfg.Validate("research"))
}

func TestValidateResearch_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Memory.Driver = "postgres"

	err := cfg.Validate("research")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "memory.database_url is required")

	cfg.Memory.DatabaseURL = "postgres://localhost/agent"
	assert.NoError(t, cfg.Validate("research"))
}

func TestValidateResearch_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Memory.Driver = "redis"

	err := cfg.Validate("research")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "memory.driver must be file, sqlite, or postgres")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateBatch_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentTopics = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_topics must be between 1 and 20")

	cfg.Batch.MaxConcurrentTopics = 21
	err = cfg.Validate("batch")
	assert.Error(t, err)

	cfg.Batch.MaxConcurrentTopics = 20
	assert.NoError(t, cfg.Validate("batch"))
}

func TestValidateStats_NoCredentialsNeeded(t *testing.T) {
	cfg := &Config{}
	cfg.Memory.Driver = "file"
	cfg.Memory.Path = "memory.json"

	assert.NoError(t, cfg.Validate("stats"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
