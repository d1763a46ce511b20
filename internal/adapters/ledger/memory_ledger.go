package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// ErrEmptyKey is returned when an entry has no message key
var ErrEmptyKey = errors.New("ledger entry has an empty message key")

// MemoryLedger is an in-memory implementation of the ReplyLedger interface
type MemoryLedger struct {
	entries     map[string]*core.LedgerEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryLedger creates a new in-memory ledger
func NewMemoryLedger(logger *zap.Logger, ttl, cleanupFreq time.Duration) *MemoryLedger {
	l := &MemoryLedger{
		entries:     make(map[string]*core.LedgerEntry),
		logger:      logger,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(l, cleanupFreq, l.stopCh, logger)
	}

	return l
}

// Seen reports whether a live entry exists for the key
func (l *MemoryLedger) Seen(ctx context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	return time.Now().Before(entry.ExpiresAt), nil
}

// Record stores an entry
func (l *MemoryLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	if entry.MessageKey == "" {
		return ErrEmptyKey
	}
	stored := *entry
	fillTimes(&stored, l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[stored.MessageKey] = &stored
	return nil
}

// Cleanup removes expired entries
func (l *MemoryLedger) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for key, entry := range l.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(l.entries, key)
			expiredCount++
		}
	}

	l.logger.Debug("Cleaned up expired ledger entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired or not
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Stop stops the background cleanup task
func (l *MemoryLedger) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func fillTimes(entry *core.LedgerEntry, ttl time.Duration) {
	if entry.RepliedAt.IsZero() {
		entry.RepliedAt = time.Now()
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.RepliedAt.Add(ttl)
	}
}

// runCleanup periodically removes expired entries until stopCh is closed
func runCleanup(l core.ReplyLedger, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up ledger", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
