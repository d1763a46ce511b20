package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap/zaptest"
)

type stoppableLedger interface {
	core.ReplyLedger
	Stop()
}

func ledgers(t *testing.T) map[string]stoppableLedger {
	logger := zaptest.NewLogger(t)

	sqliteLedger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "data", "replies.db"), logger, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error = %v", err)
	}

	return map[string]stoppableLedger{
		"memory": NewMemoryLedger(logger, time.Hour, 0),
		"sqlite": sqliteLedger,
	}
}

func TestLedgerRecordAndSeen(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			defer l.Stop()
			ctx := context.Background()

			seen, err := l.Seen(ctx, "<abc@example.com>")
			if err != nil || seen {
				t.Fatalf("Seen() on empty ledger = %v, %v", seen, err)
			}

			if err := l.Record(ctx, &core.LedgerEntry{MessageKey: "<abc@example.com>", Sender: "user@example.com", Subject: "Question"}); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			seen, err = l.Seen(ctx, "<abc@example.com>")
			if err != nil || !seen {
				t.Errorf("Seen() after Record = %v, %v", seen, err)
			}

			seen, _ = l.Seen(ctx, "<other@example.com>")
			if seen {
				t.Error("Seen() reported an unrelated key")
			}
		})
	}
}

func TestLedgerExpiryAndCleanup(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			defer l.Stop()
			ctx := context.Background()
			past := time.Now().Add(-2 * time.Hour)

			err := l.Record(ctx, &core.LedgerEntry{MessageKey: "old", RepliedAt: past, ExpiresAt: past.Add(time.Minute)})
			if err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if err := l.Record(ctx, &core.LedgerEntry{MessageKey: "fresh"}); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			if seen, _ := l.Seen(ctx, "old"); seen {
				t.Error("expired entry should not be seen")
			}
			if err := l.Cleanup(ctx); err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			if seen, _ := l.Seen(ctx, "fresh"); !seen {
				t.Error("live entry removed by Cleanup")
			}
		})
	}
}

func TestLedgerRejectsEmptyKey(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			defer l.Stop()
			if err := l.Record(context.Background(), &core.LedgerEntry{}); !errors.Is(err, ErrEmptyKey) {
				t.Errorf("Record() error = %v, want ErrEmptyKey", err)
			}
		})
	}
}

func TestMemoryLedgerCleanupRemovesExpired(t *testing.T) {
	l := NewMemoryLedger(zaptest.NewLogger(t), time.Hour, 0)
	defer l.Stop()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_ = l.Record(ctx, &core.LedgerEntry{MessageKey: "a", RepliedAt: past, ExpiresAt: past})
	_ = l.Record(ctx, &core.LedgerEntry{MessageKey: "b"})

	if err := l.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestSQLiteLedgerPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replies.db")
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	first, err := NewSQLiteLedger(path, logger, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewSQLiteLedger() error = %v", err)
	}
	if err := first.Record(ctx, &core.LedgerEntry{MessageKey: "k"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	first.Stop()

	second, err := NewSQLiteLedger(path, logger, time.Hour, 0)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Stop()
	if seen, _ := second.Seen(ctx, "k"); !seen {
		t.Error("entry lost after reopening the database")
	}
}
