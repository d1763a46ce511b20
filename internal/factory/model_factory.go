package factory

import (
	"fmt"
	"strings"

	"github.com/mikey/llm-answer-bot/internal/adapters/bedrock"
	"github.com/mikey/llm-answer-bot/internal/adapters/gemini"
	"github.com/mikey/llm-answer-bot/internal/adapters/openai"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/utils"
	"go.uber.org/zap"
)

// ModelFactory creates the model client and the service wrapping it
type ModelFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewModelFactory creates a new model factory
func NewModelFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ModelFactory {
	return &ModelFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateModelClient creates a backend client for the configured provider
func (f *ModelFactory) CreateModelClient() (core.ModelClient, error) {
	modelCfg, err := f.cfg.GetModel()
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(modelCfg.Provider) {
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", modelCfg.Provider)
	}
}

// CreateModelService creates the shared model service. It is not initialized.
func (f *ModelFactory) CreateModelService() (*core.ModelService, error) {
	modelCfg, err := f.cfg.GetModel()
	if err != nil {
		return nil, err
	}
	client, err := f.CreateModelClient()
	if err != nil {
		return nil, err
	}

	return core.NewModelService(client, f.textProcessor, f.logger, core.ModelServiceConfig{
		Info: core.ModelInfo{
			Provider:     strings.ToLower(modelCfg.Provider),
			Name:         modelCfg.Name,
			Device:       modelCfg.Device,
			Quantization: quantization(modelCfg),
		},
		PromptTemplate:    promptTemplate(modelCfg, client),
		HardMaxTokens:     modelCfg.HardMaxTokens,
		MaxInputChars:     modelCfg.MaxInputChars,
		GenerationTimeout: modelCfg.GenerationTimeout,
		StartupTimeout:    modelCfg.StartupTimeout,
	}), nil
}

// GenerationParams returns the sampling parameters for a channel
func (f *ModelFactory) GenerationParams(channel string) core.GenerationParams {
	gen := f.cfg.GetGeneration(channel)
	return core.GenerationParams{
		MaxTokens:         gen.MaxTokens,
		Temperature:       gen.Temperature,
		TopP:              gen.TopP,
		TopK:              gen.TopK,
		RepetitionPenalty: gen.RepetitionPenalty,
	}
}

type instructFormatter interface {
	UsesInstructFormat() bool
}

// promptTemplate prefers the configured template, then the backend's native instruction format
func promptTemplate(modelCfg config.ModelConfig, client core.ModelClient) string {
	if modelCfg.PromptTemplate != "" {
		return modelCfg.PromptTemplate
	}
	if f, ok := client.(instructFormatter); ok && f.UsesInstructFormat() {
		return core.MistralPromptTemplate
	}
	return "%s"
}

func quantization(modelCfg config.ModelConfig) string {
	switch {
	case !modelCfg.UseQuantization:
		return ""
	case modelCfg.LoadIn4Bit:
		return "4bit"
	default:
		return "8bit"
	}
}
