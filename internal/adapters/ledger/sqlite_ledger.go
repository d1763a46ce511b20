package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// SQLiteLedger is a SQLite implementation of the ReplyLedger interface
type SQLiteLedger struct {
	db          *sql.DB
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewSQLiteLedger creates a new SQLite ledger
func NewSQLiteLedger(dbPath string, logger *zap.Logger, ttl, cleanupFreq time.Duration) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// sqlite3 serialises writers; one connection avoids SQLITE_BUSY between cycles
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reply_ledger (
			message_key TEXT PRIMARY KEY,
			sender TEXT,
			subject TEXT,
			replied_at INTEGER,
			expires_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reply_ledger_expires_at ON reply_ledger(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	l := &SQLiteLedger{
		db:          db,
		logger:      logger,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(l, cleanupFreq, l.stopCh, logger)
	}

	return l, nil
}

// Seen reports whether a live entry exists for the key
func (l *SQLiteLedger) Seen(ctx context.Context, key string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reply_ledger
		WHERE message_key = ? AND expires_at > ?
	`, key, time.Now().Unix()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return count > 0, nil
}

// Record stores an entry
func (l *SQLiteLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	if entry.MessageKey == "" {
		return ErrEmptyKey
	}
	stored := *entry
	fillTimes(&stored, l.ttl)

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reply_ledger (message_key, sender, subject, replied_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, stored.MessageKey, stored.Sender, stored.Subject, stored.RepliedAt.Unix(), stored.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *SQLiteLedger) Cleanup(ctx context.Context) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM reply_ledger
		WHERE expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		l.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		l.logger.Debug("Cleaned up expired ledger entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (l *SQLiteLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}
