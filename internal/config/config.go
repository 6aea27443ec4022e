// Package config loads vha settings from defaults, an optional TOML file
// and VHA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/store"
)

// DefaultProviderTimeout applies to providers without timeout_ms.
const DefaultProviderTimeout = 30 * time.Second

// Config is the complete vha configuration.
type Config struct {
	ModelDir    string `toml:"model_dir"`
	DatasetsDir string `toml:"datasets_dir"`

	// DBPath is empty for store.DefaultDBPath.
	DBPath   string `toml:"db_path"`
	Listen   string `toml:"listen"`
	Strategy string `toml:"strategy"`

	// LogAttempts persists every provider call to the database.
	LogAttempts bool `toml:"log_attempts"`

	Dialogue   DialogueConfig   `toml:"dialogue"`
	Validation GenerationConfig `toml:"validation"`
	Chat       GenerationConfig `toml:"chat"`
	Providers  []ProviderConfig `toml:"providers"`
}

// DialogueConfig points at the dialogue engine.
type DialogueConfig struct {
	URL       string  `toml:"url"`
	Enabled   bool    `toml:"enabled"`
	TimeoutMs int     `toml:"timeout_ms"`
	Threshold float64 `toml:"threshold"`
}

// Timeout returns the dialogue call budget.
func (d DialogueConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// GenerationConfig holds per-role generation settings.
type GenerationConfig struct {
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	MaxSymptoms int     `toml:"max_symptoms,omitempty"`
}

// ProviderConfig is one [[providers]] table.
type ProviderConfig struct {
	Name          string  `toml:"name"`
	Kind          string  `toml:"kind"`
	Role          string  `toml:"role"`
	Model         string  `toml:"model,omitempty"`
	Endpoint      string  `toml:"endpoint,omitempty"`
	APIKeyEnv     string  `toml:"api_key_env,omitempty"`
	TimeoutMs     int     `toml:"timeout_ms,omitempty"`
	Priority      int     `toml:"priority"`
	Enabled       *bool   `toml:"enabled,omitempty"`
	MaxTokens     int     `toml:"max_tokens,omitempty"`
	Temperature   float64 `toml:"temperature,omitempty"`
	RatePerMinute float64 `toml:"rate_per_minute,omitempty"`
}

// IsEnabled resolves the enabled flag. Without an explicit value a
// provider is enabled when its kind needs no key or its key is set.
func (p ProviderConfig) IsEnabled() bool {
	if p.Enabled != nil {
		return *p.Enabled
	}
	return !llm.NeedsKey(p.Kind) || llm.KeyFromEnv(p.Kind, p.APIKeyEnv) != ""
}

// Timeout returns the provider's per-attempt budget.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// Default returns the built-in configuration. The provider chains are
// chat: gemini, groq, cohere and validate: groq, gemini.
func Default() *Config {
	return &Config{
		ModelDir:    "./models",
		DatasetsDir: "./datasets",
		Listen:      ":8080",
		Strategy:    string(chain.Sequential),
		LogAttempts: true,
		Dialogue: DialogueConfig{
			URL:       "http://localhost:5005",
			Enabled:   true,
			TimeoutMs: 60_000,
			Threshold: 0.6,
		},
		Validation: GenerationConfig{MaxTokens: 300, Temperature: 0.3, MaxSymptoms: 10},
		Chat:       GenerationConfig{MaxTokens: 500, Temperature: 0.7},
		Providers: []ProviderConfig{
			{Name: "gemini-chat", Kind: llm.KindGemini, Role: string(chain.RoleChat), Model: "gemini-flash", Priority: 0},
			{Name: "groq-chat", Kind: llm.KindGroq, Role: string(chain.RoleChat), Model: "llama-3.3-70b-versatile", Priority: 1,
				MaxTokens: 500, Temperature: 0.7},
			{Name: "cohere-chat", Kind: llm.KindCohere, Role: string(chain.RoleChat), Model: "command-r-plus", Priority: 2},
			{Name: "groq-validate", Kind: llm.KindGroq, Role: string(chain.RoleValidate), Model: "llama-3.3-70b-versatile", Priority: 0,
				MaxTokens: 300, Temperature: 0.3},
			{Name: "gemini-validate", Kind: llm.KindGemini, Role: string(chain.RoleValidate), Model: "gemini-flash", Priority: 1},
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path and
// the environment. A missing file is not an error. A file that declares
// [[providers]] replaces the default chains entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			defaults := cfg.Providers
			cfg.Providers = nil
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			if len(cfg.Providers) == 0 {
				cfg.Providers = defaults
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("VHA_MODEL_DIR", &c.ModelDir)
	setString("VHA_DATASETS_DIR", &c.DatasetsDir)
	setString("VHA_DIALOGUE_URL", &c.Dialogue.URL)
	setString("VHA_STRATEGY", &c.Strategy)
	setString("VHA_DB", &c.DBPath)
	setString("VHA_LISTEN", &c.Listen)

	if v := os.Getenv("VHA_DIALOGUE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VHA_DIALOGUE_ENABLED: %w", err)
		}
		c.Dialogue.Enabled = b
	}
	if v := os.Getenv("VHA_DIALOGUE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VHA_DIALOGUE_TIMEOUT: %w", err)
		}
		c.Dialogue.TimeoutMs = int(d / time.Millisecond)
	}
	if v := os.Getenv("VHA_DIALOGUE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VHA_DIALOGUE_THRESHOLD: %w", err)
		}
		c.Dialogue.Threshold = f
	}
	return nil
}

// Validate checks value ranges and provider definitions.
func (c *Config) Validate() error {
	if c.Dialogue.Threshold < 0 || c.Dialogue.Threshold > 1 {
		return fmt.Errorf("dialogue threshold %v outside [0, 1]", c.Dialogue.Threshold)
	}
	if c.Dialogue.TimeoutMs <= 0 {
		return fmt.Errorf("dialogue timeout must be positive")
	}
	if _, err := chain.ParseStrategy(c.Strategy); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if !llm.KnownKind(p.Kind) {
			return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}
		if _, err := chain.ParseRole(p.Role); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		if p.TimeoutMs < 0 {
			return fmt.Errorf("provider %q: timeout_ms must not be negative", p.Name)
		}
		if p.RatePerMinute < 0 {
			return fmt.Errorf("provider %q: rate_per_minute must not be negative", p.Name)
		}
	}
	return nil
}

// Descriptors converts the provider tables to chain descriptors, resolving
// API keys from the environment.
func (c *Config) Descriptors() []chain.Descriptor {
	out := make([]chain.Descriptor, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, chain.Descriptor{
			Name:     p.Name,
			Role:     chain.Role(p.Role),
			Timeout:  p.Timeout(),
			Priority: p.Priority,
			Enabled:  p.IsEnabled(),
			Client: llm.ClientConfig{
				Kind:    p.Kind,
				APIKey:  llm.KeyFromEnv(p.Kind, p.APIKeyEnv),
				Model:   p.Model,
				BaseURL: p.Endpoint,
			},
			MaxTokens:     p.MaxTokens,
			Temperature:   p.Temperature,
			RatePerMinute: p.RatePerMinute,
		})
	}
	return out
}

// ResolveDBPath returns DBPath or the default database location.
func (c *Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, store.EnsureDir(c.DBPath)
	}
	return store.DefaultDBPath()
}

// StrategyValue returns the parsed chain strategy.
func (c *Config) StrategyValue() chain.Strategy {
	s, err := chain.ParseStrategy(c.Strategy)
	if err != nil {
		return chain.Sequential
	}
	return s
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
