package llm

import (
	"context"
	"fmt"

	"github.com/souchan25/virtualHealthAssistant/internal/store"
)

// NewProvider creates a Provider from configuration. When eventRepo is
// non-nil the provider is wrapped with call logging under name.
func NewProvider(ctx context.Context, name string, cfg ClientConfig, eventRepo store.EventRepo) (Provider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error

	switch cfg.Kind {
	case KindAnthropic:
		base, err = NewAnthropicProvider(cfg)
	case KindOpenAI, KindGroq, KindOpenRouter, KindCohere, KindOllama:
		base, err = NewOpenAIProvider(cfg)
	case KindGemini:
		base, err = NewGeminiProvider(ctx, cfg)
	case KindMock:
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider kind: %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Kind, err)
	}

	if eventRepo == nil {
		return base, nil
	}
	return WithLogging(base, name, eventRepo), nil
}
