package bedrock

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// Factory creates new instances of BedrockClient
type Factory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFactory creates a new factory for BedrockClient instances
func NewFactory(cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates a new BedrockClient
func (f *Factory) CreateClient() (core.ModelClient, error) {
	modelCfg, err := f.cfg.GetModel()
	if err != nil {
		return nil, err
	}
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(bedrockCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		awsCfg.Credentials,
		modelCfg.Name,
		f.logger,
	), nil
}
