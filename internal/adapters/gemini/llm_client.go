package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the ModelClient interface using Google Gemini
type GeminiClient struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Ping fetches the model description
func (c *GeminiClient) Ping(ctx context.Context) error {
	info, err := c.client.GenerativeModel(c.modelName).Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to describe Gemini model: %w", err)
	}
	c.logger.Debug("Gemini model available",
		zap.String("model", info.Name),
		zap.Int32("output_token_limit", info.OutputTokenLimit))
	return nil
}

// Generate generates content for the prompt. A model handle is built per
// request so concurrent calls with different parameters do not interfere.
func (c *GeminiClient) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(req.Params.Temperature)
	model.SetTopP(req.Params.TopP)
	if req.Params.TopK > 0 {
		model.SetTopK(int32(req.Params.TopK))
	}
	model.SetMaxOutputTokens(int32(req.Params.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	return &core.GenerationResult{
		Text:        sb.String(),
		ModelUsed:   c.modelName,
		GeneratedAt: time.Now(),
	}, nil
}
