package llm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samsaffron/vibe-llm/internal/config"
)

// ParseProviderModel parses "provider:model" or just "provider" from a flag value.
// Returns (provider, model, error). Model will be empty if not specified.
func ParseProviderModel(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	provider := strings.TrimSpace(parts[0])
	if provider == "" {
		return "", "", fmt.Errorf("invalid provider format: %q", s)
	}
	model := ""
	if len(parts) == 2 {
		model = strings.TrimSpace(parts[1])
	}
	if !slices.Contains(config.ProviderNames(), provider) {
		return "", "", fmt.Errorf("unknown provider: %s (valid: %s)", provider, strings.Join(config.ProviderNames(), ", "))
	}
	return provider, model, nil
}

// NewProvider creates the configured provider.
// Providers are wrapped with automatic retry for rate limits (429) and transient errors.
func NewProvider(cfg *config.Config) (Provider, error) {
	provider, err := newProviderInternal(cfg)
	if err != nil {
		return nil, err
	}
	if _, ok := provider.(*MockProvider); ok {
		return provider, nil
	}
	return WrapWithRetry(provider, DefaultRetryConfig()), nil
}

// newProviderInternal creates the underlying provider without retry wrapper.
func newProviderInternal(cfg *config.Config) (Provider, error) {
	settings, ok := cfg.ProviderSettings(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(settings.APIKey, settings.Model)

	case "openai":
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured. Set OPENAI_API_KEY or add to config")
		}
		return NewOpenAIProvider(settings.APIKey, settings.Model), nil

	case "gemini":
		if settings.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured. Set GEMINI_API_KEY or add to config")
		}
		return NewGeminiProvider(settings.APIKey, settings.Model), nil

	case "groq":
		if settings.APIKey == "" {
			return nil, fmt.Errorf("groq API key not configured. Set GROQ_API_KEY or add to config")
		}
		return NewGroqProvider(settings.APIKey, settings.Model, settings.BaseURL), nil

	case "openrouter":
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openrouter API key not configured. Set OPENROUTER_API_KEY or add to config")
		}
		return NewOpenRouterProvider(settings.APIKey, settings.Model, cfg.OpenRouter.AppURL, cfg.OpenRouter.AppTitle), nil

	case "ollama":
		if settings.Model == "" {
			return nil, fmt.Errorf("ollama requires a model (set ollama.model or use --provider ollama:<model>)")
		}
		return NewOllamaProvider(settings.BaseURL, settings.Model), nil

	case "openai-compat":
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("provider openai-compat requires base_url")
		}
		return NewOpenAICompatProvider(settings.BaseURL, settings.APIKey, settings.Model, "OpenAI-compatible"), nil

	case "mock":
		return newEchoMock(), nil
	}

	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}

// newEchoMock returns an offline provider that always answers with the same payload,
// for trying the front-ends without an API key.
func newEchoMock() *MockProvider {
	reply := "<think>they asked for something; build the opposite</think>\n```json\n" +
		`{"conversation": "You wanted that? Here's a lovely grey box instead.", "code": "<div style=\"width:120px;height:120px;background:#999\"></div>"}` +
		"\n```"
	return NewMockProvider("mock").AddTurn(MockTurn{Text: reply, ChunkSize: 12}).RepeatLast()
}
