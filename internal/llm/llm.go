// Package llm adapts language model backends to the advisor's generation
// and availability interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"

	"zenith/internal/advisor"
	"zenith/internal/config"
	"zenith/internal/log"
)

// ErrUnavailable is returned by providers that cannot generate.
var ErrUnavailable = errors.New("language model unavailable")

// Provider generates text and reports whether its model is ready.
type Provider interface {
	advisor.Generator
	advisor.Availability
	Name() string
}

// New selects a provider from configuration.
func New(cfg *config.Config, logger *log.Logger) (Provider, error) {
	logger = logger.WithComponent(log.ComponentLLM)

	switch cfg.LLMProvider {
	case "", "none":
		logger.Info("Language model disabled")
		return Disabled{}, nil
	case "ollama":
		p := NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.LLMTimeout, logger)
		logger.Info("Using Ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return p, nil
	case "openai":
		p := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.LLMTimeout, logger)
		logger.Info("Using OpenAI-compatible API", "model", cfg.OpenAIModel, "custom_base_url", cfg.OpenAIBaseURL != "")
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// Disabled is the provider used when no model is configured. The advisor
// answers with its model-unavailable message.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Available(context.Context) bool { return false }

func (Disabled) GenerateStream(context.Context, string, advisor.GenerateOptions) (advisor.TokenStream, error) {
	return nil, ErrUnavailable
}
