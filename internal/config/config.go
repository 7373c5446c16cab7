// Package config defines the dietbot configuration. The Config struct is
// built once at startup and injected into every component constructor;
// there is no ambient global settings lookup inside business logic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dietbot configuration.
type Config struct {
	// Telegram transport
	Telegram TelegramConfig `yaml:"telegram"`

	// Administrator Telegram user id. This identity always has access and
	// is the only one allowed to grant or revoke.
	AdminID int64 `yaml:"admin_id"`

	// SQLite storage
	Database DatabaseConfig `yaml:"database"`

	// Advisory LLM provider
	LLM LLMConfig `yaml:"llm"`

	// Per-user limits
	Limits LimitsConfig `yaml:"limits"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig configures the advisory LLM provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // mistral, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// LimitsConfig holds per-user ceilings.
type LimitsConfig struct {
	// MaxAdvisoryRequests is the lifetime advisory-call ceiling per user,
	// shared across all users. Derived from ai_requests history, so the
	// count can never drift from what the user sees.
	MaxAdvisoryRequests int `yaml:"max_advisory_requests"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/bot.db",
		},
		LLM: LLMConfig{
			Provider:    "mistral",
			Model:       "mistral-large-latest",
			BaseURL:     "https://api.mistral.ai/v1",
			MaxTokens:   500,
			Temperature: 0.7,
			Timeout:     "30s",
		},
		Limits: LimitsConfig{
			MaxAdvisoryRequests: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if id := os.Getenv("DIETBOT_ADMIN_ID"); id != "" {
		if parsed, err := strconv.ParseInt(id, 10, 64); err == nil {
			c.AdminID = parsed
		}
	}
	if path := os.Getenv("DIETBOT_DB"); path != "" {
		c.Database.Path = path
	}

	// LLM API key from environment (checked in priority order)
	if key := os.Getenv("MISTRAL_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "mistral"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
}

// GetLLMTimeout returns the LLM call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if c.AdminID == 0 {
		return fmt.Errorf("admin_id is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Limits.MaxAdvisoryRequests < 1 {
		return fmt.Errorf("limits.max_advisory_requests must be >= 1")
	}
	switch c.LLM.Provider {
	case "mistral", "gemini":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required")
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be >= 1")
	}
	return nil
}
