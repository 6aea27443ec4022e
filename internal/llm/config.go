package llm

import (
	"fmt"
	"os"
	"sort"
)

// Client kinds understood by NewProvider.
const (
	KindAnthropic  = "anthropic"
	KindOpenAI     = "openai"
	KindGemini     = "gemini"
	KindGroq       = "groq"
	KindOpenRouter = "openrouter"
	KindCohere     = "cohere"
	KindOllama     = "ollama"
	KindMock       = "mock"
)

// ClientConfig describes how to reach one vendor endpoint.
type ClientConfig struct {
	// Kind selects the client implementation. See the Kind* constants.
	Kind string

	APIKey string

	// Model is a friendly name or a raw vendor model ID. Empty selects the
	// kind's default model.
	Model string

	// BaseURL overrides the vendor endpoint. Empty selects the kind's
	// default endpoint.
	BaseURL string
}

// compatBaseURLs lists the OpenAI-compatible endpoints served through the
// OpenAI SDK.
var compatBaseURLs = map[string]string{
	KindGroq:       "https://api.groq.com/openai/v1",
	KindOpenRouter: "https://openrouter.ai/api/v1",
	KindCohere:     "https://api.cohere.ai/compatibility/v1",
	KindOllama:     "http://localhost:11434/v1",
}

var defaultModels = map[string]string{
	KindAnthropic:  "claude-haiku",
	KindOpenAI:     "gpt-4o-mini",
	KindGemini:     "gemini-flash",
	KindGroq:       "llama-3.3-70b-versatile",
	KindOpenRouter: "google/gemini-2.5-flash",
	KindCohere:     "command-r-plus",
	KindOllama:     "llama3.2",
	KindMock:       "mock",
}

// keyEnvVars are the conventional API key variables per kind.
var keyEnvVars = map[string]string{
	KindAnthropic:  "ANTHROPIC_API_KEY",
	KindOpenAI:     "OPENAI_API_KEY",
	KindGemini:     "GEMINI_API_KEY",
	KindGroq:       "GROQ_API_KEY",
	KindOpenRouter: "OPENROUTER_API_KEY",
	KindCohere:     "COHERE_API_KEY",
}

// Kinds returns every supported client kind, sorted.
func Kinds() []string {
	out := make([]string, 0, len(defaultModels))
	for k := range defaultModels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownKind reports whether kind is supported.
func KnownKind(kind string) bool {
	_, ok := defaultModels[kind]
	return ok
}

// SupportsSchema reports whether the kind's vendor API accepts a response
// schema. The OpenAI-compatible presets do not, so their answers go through
// text repair only.
func SupportsSchema(kind string) bool {
	switch kind {
	case KindAnthropic, KindOpenAI, KindGemini:
		return true
	}
	return false
}

// DefaultModel returns the default model name for a kind.
func DefaultModel(kind string) string { return defaultModels[kind] }

// DefaultKeyEnv returns the conventional API key env var for a kind, or ""
// when the kind needs no key.
func DefaultKeyEnv(kind string) string { return keyEnvVars[kind] }

// NeedsKey reports whether the kind requires an API key.
func NeedsKey(kind string) bool {
	_, ok := keyEnvVars[kind]
	return ok
}

// WithDefaults fills empty Model and BaseURL fields from the kind's defaults.
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.Model == "" {
		c.Model = defaultModels[c.Kind]
	}
	if c.BaseURL == "" {
		c.BaseURL = compatBaseURLs[c.Kind]
	}
	return c
}

// KeyFromEnv resolves the API key from envVar, falling back to the kind's
// conventional variable.
func KeyFromEnv(kind, envVar string) string {
	if envVar != "" {
		if k := os.Getenv(envVar); k != "" {
			return k
		}
	}
	if def := keyEnvVars[kind]; def != "" {
		return os.Getenv(def)
	}
	return ""
}

// Validate checks that the selected kind has its required API key set.
func (c ClientConfig) Validate() error {
	if !KnownKind(c.Kind) {
		return fmt.Errorf("unknown LLM provider kind: %q", c.Kind)
	}
	if NeedsKey(c.Kind) && c.APIKey == "" {
		return fmt.Errorf("%s is required for the %s provider", keyEnvVars[c.Kind], c.Kind)
	}
	return nil
}
