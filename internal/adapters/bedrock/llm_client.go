package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// InvokeAPI is the subset of the Bedrock runtime client used here
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient is an implementation of the ModelClient interface using Amazon Bedrock
type BedrockClient struct {
	client      InvokeAPI
	credentials aws.CredentialsProvider
	modelID     string
	logger      *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(client InvokeAPI, credentials aws.CredentialsProvider, modelID string, logger *zap.Logger) *BedrockClient {
	return &BedrockClient{
		client:      client,
		credentials: credentials,
		modelID:     modelID,
		logger:      logger,
	}
}

// Ping resolves AWS credentials; Bedrock runtime has no free model probe
func (c *BedrockClient) Ping(ctx context.Context) error {
	if c.credentials == nil {
		return nil
	}
	if _, err := c.credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("failed to resolve AWS credentials: %w", err)
	}
	return nil
}

// Generate invokes the model with a payload in the family's native format
func (c *BedrockClient) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := c.parseResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	return &core.GenerationResult{
		Text:        text,
		ModelUsed:   c.modelID,
		GeneratedAt: time.Now(),
	}, nil
}

func (c *BedrockClient) buildPayload(req *core.GenerationRequest) ([]byte, error) {
	p := req.Params
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + req.Prompt + "\n\nAssistant:",
			"max_tokens_to_sample": p.MaxTokens,
			"temperature":          p.Temperature,
			"top_p":                p.TopP,
			"top_k":                p.TopK,
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": req.Prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": p.MaxTokens,
				"temperature":   p.Temperature,
				"topP":          p.TopP,
			},
		})
	case c.isMistralModel():
		return json.Marshal(map[string]interface{}{
			"prompt":      req.Prompt,
			"max_tokens":  p.MaxTokens,
			"temperature": p.Temperature,
			"top_p":       p.TopP,
			"top_k":       p.TopK,
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":             req.Prompt,
			"max_tokens":         p.MaxTokens,
			"temperature":        p.Temperature,
			"top_p":              p.TopP,
			"top_k":              p.TopK,
			"repetition_penalty": p.RepetitionPenalty,
		})
	}
}

func (c *BedrockClient) parseResponse(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", nil
		}
		return titanResp.Results[0].OutputText, nil
	case c.isMistralModel():
		var mistralResp struct {
			Outputs []struct {
				Text string `json:"text"`
			} `json:"outputs"`
		}
		if err := json.Unmarshal(body, &mistralResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Mistral response: %w", err)
		}
		if len(mistralResp.Outputs) == 0 {
			return "", nil
		}
		return mistralResp.Outputs[0].Text, nil
	default:
		var genericResp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, s := range []string{genericResp.Output, genericResp.Text, genericResp.Response, genericResp.Generation} {
			if s != "" {
				return s, nil
			}
		}
		c.logger.Debug("Unrecognised Bedrock response shape", zap.Int("body_size", len(body)))
		return "", nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

// isMistralModel checks if the model is a Mistral model
func (c *BedrockClient) isMistralModel() bool {
	return strings.HasPrefix(c.modelID, "mistral.")
}

// UsesInstructFormat reports whether prompts must carry the [INST] wrapper
func (c *BedrockClient) UsesInstructFormat() bool {
	return c.isMistralModel()
}
