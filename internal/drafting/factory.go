package drafting

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Options struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	// FallbackOffline swaps in StaticBackend when the provider has no credentials.
	FallbackOffline bool
}

var defaultModels = map[string]string{
	"gemini": "gemini-2.5-flash",
	"openai": "gpt-4o-mini",
	"github": "gpt-4o-mini",
	"ollama": "llama3.1",
}

// NewBackend builds the configured provider wrapped with the per-call timeout.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModels[provider]
	}

	needsKey := provider == "gemini" || provider == "openai" || provider == "github"
	if needsKey && strings.TrimSpace(opts.APIKey) == "" {
		if opts.FallbackOffline {
			return WithTimeout(NewStaticBackend(""), opts.Timeout), nil
		}
		return nil, fmt.Errorf("%s provider requires an api key", provider)
	}

	var (
		b   Backend
		err error
	)
	switch provider {
	case "gemini":
		b, err = NewGeminiBackend(ctx, opts.APIKey, model, opts.Temperature)
	case "openai":
		b = NewOpenAIBackend(opts.APIKey, model, opts.BaseURL, opts.Temperature)
	case "github":
		b = NewGitHubModelsBackend(opts.APIKey, model, opts.BaseURL, opts.Temperature)
	case "ollama":
		b = NewOllamaBackend(model, opts.BaseURL, opts.Temperature)
	case "offline", "static":
		b = NewStaticBackend("")
	default:
		return nil, fmt.Errorf("unsupported drafting provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(b, opts.Timeout), nil
}
