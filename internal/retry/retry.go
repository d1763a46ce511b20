package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy describes how often and how patiently an operation is retried
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy is three attempts starting at one second
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the delay before the given retry (1-based), with jitter
func (p Policy) Backoff(retry int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	base := p.BaseDelay * time.Duration(retry*retry)
	if p.MaxDelay > 0 && base > p.MaxDelay {
		base = p.MaxDelay
	}
	return base + time.Duration(rand.Int64N(int64(base/2)+1))
}

// Do runs fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done
func Do(ctx context.Context, p Policy, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := p.Backoff(attempt)
			logger.Warn("Retrying operation",
				zap.String("operation", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s interrupted: %w", op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
