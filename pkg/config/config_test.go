package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.URL)
	assert.Equal(t, "deepseek-coder-v2:latest", cfg.Ollama.Model)
	assert.Equal(t, "deepseek-coder", cfg.PricingModel())
	assert.Equal(t, 160_000, cfg.Ollama.ContextLimit)
	assert.Equal(t, 2000*time.Second, cfg.Ollama.Timeout)
	assert.Equal(t, "output/prompt_analytics_log.csv", cfg.LedgerLocation())
	assert.Len(t, cfg.Pricing.Models, 4)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_OLLAMA_MODEL", "llama3:8b")

	path := writeConfig(t, `
log:
  level: debug
  format: json
ollama:
  url: http://gpu-box:11434
  model: ${TEST_OLLAMA_MODEL}
  pricing_model: ""
  context_limit: 8192
  timeout: 30m
  measure_response_tokens: true
pricing:
  default_rate: 0.001
  models:
    - model: llama3:8b
      cost_per_1k: 0.0005
ledger:
  backend: sqlite
  db_path: usage.db
audit:
  enabled: true
  retention_days: 7
requirements:
  language: English
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "llama3:8b", cfg.Ollama.Model)
	assert.Equal(t, "llama3:8b", cfg.PricingModel(), "empty pricing model falls back to model")
	assert.Equal(t, 8192, cfg.Ollama.ContextLimit)
	assert.Equal(t, 30*time.Minute, cfg.Ollama.Timeout)
	assert.True(t, cfg.Ollama.MeasureResponseTokens)
	require.Len(t, cfg.Pricing.Models, 1, "configured rates replace the built-ins")
	assert.Equal(t, 0.0005, cfg.Pricing.Models[0].CostPer1K)
	assert.Equal(t, "usage.db", cfg.LedgerLocation())
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 7, cfg.Audit.RetentionDays)
	assert.Equal(t, 65536, cfg.Audit.MaxBodySize, "unset keys keep defaults")
	assert.Equal(t, "English", cfg.Requirements.Language)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("HTTP_TIMEOUT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Ollama, cfg.Ollama)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://10.0.0.5:11434")
	t.Setenv("ARCHSCRIBE_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "ollama:\n  url: http://ignored:1\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Ollama.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadTimeoutFromEnv(t *testing.T) {
	path := writeConfig(t, "ollama:\n  timeout: 10s\n")

	t.Setenv("HTTP_TIMEOUT", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Ollama.Timeout)

	t.Setenv("HTTP_TIMEOUT", "90")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Ollama.Timeout, "env wins over the file")

	t.Setenv("HTTP_TIMEOUT", "30m")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Ollama.Timeout)

	t.Setenv("HTTP_TIMEOUT", "soon")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Ollama.Timeout, "unparsable values are ignored")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "ollama: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty model", func(c *Config) { c.Ollama.Model = "" }, "ollama.model"},
		{"empty url", func(c *Config) { c.Ollama.URL = "" }, "ollama.url"},
		{"zero context", func(c *Config) { c.Ollama.ContextLimit = 0 }, "context_limit"},
		{"negative timeout", func(c *Config) { c.Ollama.Timeout = -time.Second }, "timeout"},
		{"negative default rate", func(c *Config) { c.Pricing.DefaultRate = -1 }, "default_rate"},
		{"negative model rate", func(c *Config) { c.Pricing.Models[0].CostPer1K = -0.1 }, "gpt-3.5-turbo"},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "redis" }, "ledger backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
