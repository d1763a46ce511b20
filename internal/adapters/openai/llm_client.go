package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the ModelClient interface for
// OpenAI-compatible chat completion servers (OpenAI, vLLM, TGI, Ollama)
type OpenAIClient struct {
	client    *openai.Client
	modelName string
	logger    *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(client *openai.Client, modelName string, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}
}

// Ping checks that the server lists the configured model
func (c *OpenAIClient) Ping(ctx context.Context) error {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.modelName {
			return nil
		}
	}
	if len(models.Models) == 0 {
		// some servers answer the models endpoint with an empty list
		c.logger.Warn("Server lists no models, assuming the configured one is served",
			zap.String("model", c.modelName))
		return nil
	}
	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	return fmt.Errorf("model %q is not served (available: %s)", c.modelName, strings.Join(ids, ", "))
}

// Generate sends the prompt as a chat completion
func (c *OpenAIClient) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		MaxTokens:   req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		User:        req.RequestID,
	}

	resp, err := c.client.CreateChatCompletion(withExtraSampling(ctx, req.Params), chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat completion rejected (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return &core.GenerationResult{ModelUsed: c.modelName, ProcessingID: resp.ID, GeneratedAt: time.Now()}, nil
	}

	return &core.GenerationResult{
		Text:         resp.Choices[0].Message.Content,
		ModelUsed:    resp.Model,
		ProcessingID: resp.ID,
		GeneratedAt:  time.Now(),
	}, nil
}
