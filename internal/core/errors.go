package core

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotLoaded is returned by Generate before Initialize succeeded
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrNoAnswer is returned when the backend produced no usable text
	ErrNoAnswer = errors.New("no answer")
	// ErrGenerationFailed is matched by every GenerationError
	ErrGenerationFailed = errors.New("generation failed")
)

// GenerationError wraps a backend failure (timeout, transport, out of memory)
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on %s: %v", e.Provider, e.Err)
}

// Is makes errors.Is(err, ErrGenerationFailed) hold
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
