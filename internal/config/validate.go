package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissing is matched by every MissingKeyError
	ErrMissing = errors.New("missing required configuration")
	// ErrInvalid is matched by every InvalidValueError
	ErrInvalid = errors.New("invalid configuration value")
	// ErrNotPositive is used when a duration or count must be greater than zero
	ErrNotPositive = errors.New("must be greater than zero")
)

// MissingKeyError reports a required setting that was not provided
type MissingKeyError struct {
	Key string
	Env string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required configuration: %s (%s)", e.Env, e.Key)
}

// Is makes errors.Is(err, ErrMissing) hold
func (e *MissingKeyError) Is(target error) bool {
	return target == ErrMissing
}

// InvalidValueError reports a setting that could not be parsed or is out of range
type InvalidValueError struct {
	Key   string
	Env   string
	Value string
	Err   error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for %s (%s): %v", e.Value, e.Env, e.Key, e.Err)
}

// Is makes errors.Is(err, ErrInvalid) hold
func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

// Channel names accepted by Validate
const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

var requiredKeys = map[string][]string{
	ChannelTelegram: {"telegram.bot_token"},
	ChannelEmail:    {"email.address", "email.password", "email.domain"},
}

// Validate checks that every setting the given channels need is present and parseable.
// The first problem found is returned, naming the environment variable to set.
func (c *Config) Validate(channels ...string) error {
	if c.GetString("model.name") == "" {
		return &MissingKeyError{Key: "model.name", Env: EnvName("model.name")}
	}
	model, err := c.GetModel()
	if err != nil {
		return err
	}
	if err := validateModel(model); err != nil {
		return err
	}
	if _, err := c.GetLedger(); err != nil {
		return err
	}
	if _, err := c.GetShutdownGrace(); err != nil {
		return err
	}

	for _, ch := range channels {
		keys, ok := requiredKeys[ch]
		if !ok {
			return fmt.Errorf("unknown channel %q", ch)
		}
		for _, key := range keys {
			if c.GetString(key) == "" {
				return &MissingKeyError{Key: key, Env: EnvName(key)}
			}
		}

		switch ch {
		case ChannelTelegram:
			if _, err := c.GetTelegram(); err != nil {
				return err
			}
		case ChannelEmail:
			if _, err := c.GetEmail(); err != nil {
				return err
			}
			if _, err := c.GetIMAP(); err != nil {
				return err
			}
			if _, err := c.GetSMTP(); err != nil {
				return err
			}
		}

		gen := c.GetGeneration(ch)
		if gen.MaxTokens <= 0 {
			key := ch + ".generation.max_tokens"
			return &InvalidValueError{Key: key, Env: EnvName(key), Value: c.GetString(key), Err: ErrNotPositive}
		}
	}
	return nil
}

func validateModel(m ModelConfig) error {
	switch strings.ToLower(m.Provider) {
	case "openai":
		if m.BaseURL == "" && m.APIKey == "" {
			return &MissingKeyError{Key: "model.api_key", Env: EnvName("model.api_key")}
		}
	case "gemini":
		if m.APIKey == "" {
			return &MissingKeyError{Key: "model.api_key", Env: EnvName("model.api_key")}
		}
	case "bedrock":
	default:
		return &InvalidValueError{Key: "model.provider", Env: EnvName("model.provider"), Value: m.Provider, Err: errors.New("expected openai, gemini or bedrock")}
	}
	if m.GenerationTimeout <= 0 {
		return &InvalidValueError{Key: "model.generation_timeout", Env: EnvName("model.generation_timeout"), Value: m.GenerationTimeout.String(), Err: ErrNotPositive}
	}
	if m.HardMaxTokens <= 0 {
		return &InvalidValueError{Key: "model.hard_max_tokens", Env: EnvName("model.hard_max_tokens"), Value: fmt.Sprint(m.HardMaxTokens), Err: ErrNotPositive}
	}
	return nil
}
