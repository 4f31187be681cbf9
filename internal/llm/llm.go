package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider sends one prompt to a generative text backend and returns the raw
// text it produced. The text may or may not contain well-formed JSON.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)

	// Name is the backend name ("gemini", "openai", ...).
	Name() string

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Config selects and configures a text provider.
type Config struct {
	// Provider is one of "gemini", "openai", "anthropic" or "mock".
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the endpoint for OpenAI-compatible APIs.
	BaseURL string
}

var defaultModels = map[string]string{
	"gemini":    "gemini-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku",
	"mock":      "mock",
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "anthropic":
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("an API key is required for the %s provider (set --llm-key or the provider's API key environment variable)", c.Provider)
		}
	case "mock":
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

// New creates a Provider from configuration, wrapped with metrics and logging.
func New(ctx context.Context, cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}

	var base Provider
	var err error
	switch cfg.Provider {
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		base, err = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.APIKey, cfg.Model)
	case "mock":
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return WithMetrics(base), nil
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	// Not in the map: use as-is (allows direct model IDs).
	return name
}
