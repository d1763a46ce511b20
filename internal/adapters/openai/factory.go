package openai

import (
	"fmt"

	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Factory creates new instances of OpenAIClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for OpenAIClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new OpenAIClient. A base URL points it at a
// self-hosted server, in which case the API key is optional.
func (f *Factory) CreateClient() (core.ModelClient, error) {
	modelCfg, err := f.cfg.GetModel()
	if err != nil {
		return nil, err
	}
	if modelCfg.BaseURL == "" && modelCfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required without a base URL")
	}

	clientCfg := openai.DefaultConfig(modelCfg.APIKey)
	if modelCfg.BaseURL != "" {
		clientCfg.BaseURL = modelCfg.BaseURL
		// self-hosted servers take the sampling fields the OpenAI API lacks
		clientCfg.HTTPClient = &extraParamsDoer{next: clientCfg.HTTPClient}
	}

	f.logger.Debug("Creating OpenAI-compatible client",
		zap.String("base_url", clientCfg.BaseURL),
		zap.String("model", modelCfg.Name))

	return NewOpenAIClient(openai.NewClientWithConfig(clientCfg), modelCfg.Name, f.logger), nil
}
