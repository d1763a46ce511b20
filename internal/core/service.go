package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-answer-bot/internal/utils"
	"go.uber.org/zap"
)

// MistralPromptTemplate is the instruction format of Mistral instruct models
const MistralPromptTemplate = "<s>[INST] %s [/INST]"

// ModelServiceConfig holds the limits applied around every generation
type ModelServiceConfig struct {
	Info              ModelInfo
	PromptTemplate    string
	HardMaxTokens     int
	MaxInputChars     int
	GenerationTimeout time.Duration
	StartupTimeout    time.Duration
}

// ModelService is the process-wide model client shared by every adapter.
// It is read-only once Initialize has succeeded and safe for concurrent use.
type ModelService struct {
	client        ModelClient
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	cfg           ModelServiceConfig

	loaded atomic.Bool
	mu     sync.RWMutex
	info   ModelInfo
}

// NewModelService creates a new model service
func NewModelService(
	client ModelClient,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	cfg ModelServiceConfig,
) *ModelService {
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = "%s"
	}
	return &ModelService{
		client:        client,
		textProcessor: textProcessor,
		logger:        logger,
		cfg:           cfg,
		info:          cfg.Info,
	}
}

// Initialize verifies the backend serves the configured model. A failure here is fatal to the caller.
func (s *ModelService) Initialize(ctx context.Context) error {
	if s.cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StartupTimeout)
		defer cancel()
	}

	s.logger.Info("Loading model",
		zap.String("provider", s.cfg.Info.Provider),
		zap.String("model", s.cfg.Info.Name),
		zap.String("device", s.cfg.Info.Device),
		zap.String("quantization", s.cfg.Info.Quantization))

	start := time.Now()
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to load model %s: %w", s.cfg.Info.Name, err)
	}

	s.mu.Lock()
	s.info.Loaded = true
	s.info.LoadedAt = time.Now()
	s.mu.Unlock()
	s.loaded.Store(true)

	s.logger.Info("Model loaded",
		zap.String("model", s.cfg.Info.Name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// IsLoaded reports whether Initialize succeeded
func (s *ModelService) IsLoaded() bool {
	return s.loaded.Load()
}

// Describe reports the configured model and whether it is loaded
func (s *ModelService) Describe() ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Generate answers a question. The returned text never holds more than
// params.MaxTokens tokens and the call never outlives the generation timeout.
func (s *ModelService) Generate(ctx context.Context, question string, params GenerationParams) (string, error) {
	if !s.loaded.Load() {
		return "", ErrModelNotLoaded
	}

	params = s.clamp(params)
	question = s.textProcessor.ProcessText(strings.TrimSpace(question), s.cfg.MaxInputChars)

	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	req := &GenerationRequest{
		Prompt:    fmt.Sprintf(s.cfg.PromptTemplate, question),
		Params:    params,
		Channel:   channelFrom(ctx),
		RequestID: uuid.NewString(),
	}

	start := time.Now()
	result, err := s.client.Generate(ctx, req)
	if err != nil {
		s.logger.Error("Generation failed",
			zap.String("request_id", req.RequestID),
			zap.String("channel", req.Channel),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", &GenerationError{Provider: s.cfg.Info.Provider, Err: err}
	}

	text := s.textProcessor.CleanResponse(result.Text)
	text = s.textProcessor.CapTokens(text, params.MaxTokens)
	if text == "" {
		s.logger.Warn("Model returned an empty answer",
			zap.String("request_id", req.RequestID),
			zap.String("channel", req.Channel))
		return "", ErrNoAnswer
	}

	s.logger.Info("Generated answer",
		zap.String("request_id", req.RequestID),
		zap.String("channel", req.Channel),
		zap.String("model", result.ModelUsed),
		zap.Int("answer_length", len(text)),
		zap.Duration("duration", time.Since(start)))

	return text, nil
}

// Close releases the backend client if it holds resources
func (s *ModelService) Close() error {
	if closer, ok := s.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *ModelService) clamp(p GenerationParams) GenerationParams {
	if p.MaxTokens <= 0 || (s.cfg.HardMaxTokens > 0 && p.MaxTokens > s.cfg.HardMaxTokens) {
		p.MaxTokens = s.cfg.HardMaxTokens
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 1
	}
	return p
}

type channelKey struct{}

// WithChannel tags a context with the channel a request came from, for logging
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok {
		return ch
	}
	return ""
}
