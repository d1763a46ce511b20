package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

var fast = Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, zaptest.NewLogger(t), "login", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	boom := errors.New("refused")
	calls := 0
	err := Do(context.Background(), fast, zaptest.NewLogger(t), "login", func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() error = %v, want wrapped %v", err, boom)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	bad := errors.New("invalid credentials")
	calls := 0
	err := Do(context.Background(), fast, zaptest.NewLogger(t), "login", func(ctx context.Context) error {
		calls++
		return Permanent(bad)
	})
	if err != bad {
		t.Errorf("Do() error = %v, want %v", err, bad)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{Attempts: 5, BaseDelay: time.Hour}
	calls := 0
	err := Do(ctx, slow, zaptest.NewLogger(t), "send", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoffIsBounded(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 4 * time.Second}
	for retry := 1; retry < 10; retry++ {
		if d := p.Backoff(retry); d > 6*time.Second {
			t.Errorf("Backoff(%d) = %v exceeds max plus jitter", retry, d)
		}
	}
	if (Policy{}).Backoff(3) != 0 {
		t.Error("zero policy should not wait")
	}
}
