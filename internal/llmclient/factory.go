// File: internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/config"
)

// NewFromConfig builds a tier-routing LLM client from the router
// configuration. Each tier resolves to a model config by name; the shared
// API key fills in for models that do not carry their own.
func NewFromConfig(cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fast, err := buildClient(cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build fast-tier client: %w", err)
	}
	powerful, err := buildClient(cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build powerful-tier client: %w", err)
	}
	return NewRouter(logger, fast, powerful)
}

func buildClient(cfg config.LLMRouterConfig, modelName string, logger *zap.Logger) (schemas.LLMClient, error) {
	modelCfg, ok := cfg.Models[modelName]
	if !ok {
		// No explicit entry: assume Gemini with the shared key.
		modelCfg = config.LLMModelConfig{Provider: config.ProviderGemini, Model: modelName}
	}
	if modelCfg.APIKey == "" {
		modelCfg.APIKey = cfg.APIKey
	}

	switch modelCfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(modelCfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'", modelCfg.Provider)
	}
}
