package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/archscribe/archscribe/pkg/httpclient"
	"github.com/archscribe/archscribe/pkg/models"
	"github.com/archscribe/archscribe/pkg/pricing"
	"github.com/archscribe/archscribe/pkg/tracker"
)

// Config holds all archscribe configuration.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Ollama       OllamaConfig       `yaml:"ollama"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Audit        models.AuditConfig `yaml:"audit"`
	Requirements RequirementsConfig `yaml:"requirements"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// OllamaConfig defines the generation endpoint.
type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
	// PricingModel names the rate and tokenizer profile used for estimates.
	PricingModel          string        `yaml:"pricing_model"`
	ContextLimit          int           `yaml:"context_limit"`
	Timeout               time.Duration `yaml:"timeout"`
	MeasureResponseTokens bool          `yaml:"measure_response_tokens"`
}

// PricingConfig lists per-model rates. A configured list replaces the
// built-in one.
type PricingConfig struct {
	DefaultRate float64               `yaml:"default_rate"`
	Models      []models.ModelPricing `yaml:"models"`
}

// LedgerConfig selects where usage rows are appended.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	DBPath  string `yaml:"db_path"`
}

// RequirementsConfig controls requirement extraction prompts.
type RequirementsConfig struct {
	Language string `yaml:"language"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ollama: OllamaConfig{
			URL:          "http://localhost:11434",
			Model:        "deepseek-coder-v2:latest",
			PricingModel: "deepseek-coder",
			ContextLimit: 160_000,
			Timeout:      2000 * time.Second,
		},
		Pricing: PricingConfig{
			DefaultRate: 0.002,
			Models:      append([]models.ModelPricing(nil), pricing.Builtin...),
		},
		Ledger: LedgerConfig{
			Backend: tracker.BackendCSV,
			Path:    tracker.DefaultCSVPath,
			DBPath:  "archscribe.db",
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "archscribe-audit.db",
			RetentionDays: 30,
			MaxBodySize:   65536,
		},
		Requirements: RequirementsConfig{
			Language: "Greek",
		},
	}
}

// Load reads an optional .env file, then the YAML config at path with
// environment variables expanded. An empty path yields the defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("ARCHSCRIBE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Ollama.Timeout = httpclient.EnvDuration("HTTP_TIMEOUT", c.Ollama.Timeout)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Ollama.Model == "":
		return errors.New("ollama.model is required")
	case c.Ollama.URL == "":
		return errors.New("ollama.url is required")
	case c.Ollama.ContextLimit <= 0:
		return fmt.Errorf("ollama.context_limit must be positive, got %d", c.Ollama.ContextLimit)
	case c.Ollama.Timeout <= 0:
		return fmt.Errorf("ollama.timeout must be positive, got %s", c.Ollama.Timeout)
	case c.Pricing.DefaultRate < 0:
		return fmt.Errorf("pricing.default_rate must not be negative, got %g", c.Pricing.DefaultRate)
	}
	for _, p := range c.Pricing.Models {
		if p.CostPer1K < 0 {
			return fmt.Errorf("pricing rate for %q must not be negative", p.Model)
		}
	}
	switch c.Ledger.Backend {
	case tracker.BackendCSV, tracker.BackendSQLite:
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

// PricingModel returns the model name used for rates and estimates.
func (c *Config) PricingModel() string {
	if c.Ollama.PricingModel != "" {
		return c.Ollama.PricingModel
	}
	return c.Ollama.Model
}

// LedgerLocation returns the file backing the configured ledger backend.
func (c *Config) LedgerLocation() string {
	if c.Ledger.Backend == tracker.BackendSQLite {
		return c.Ledger.DBPath
	}
	return c.Ledger.Path
}
