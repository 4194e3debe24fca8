package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-temp-service/internal/config"
)

// NewFromConfig builds the Completer selected by cfg.ResolvedProvider.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch cfg.ResolvedProvider() {
	case config.ProviderAzure:
		c, err = NewAzureOpenAIClient(AzureConfig{
			APIKey:     cfg.AzureOpenAIAPIKey,
			Endpoint:   cfg.AzureOpenAIEndpoint,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			Timeout:    cfg.LLMTimeout,
		}, logger)
	case config.ProviderOpenAI:
		c, err = NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		}, logger)
	case config.ProviderGemini:
		c, err = NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.LLMTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: provider %q has no credentials", ErrProviderNotConfigured, cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
