package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// MySQLLedger is a MySQL implementation of the ReplyLedger interface
type MySQLLedger struct {
	db          *sql.DB
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLLedger creates a new MySQL ledger
func NewMySQLLedger(dsn string, logger *zap.Logger, ttl, cleanupFreq time.Duration) (*MySQLLedger, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reply_ledger (
			message_key VARCHAR(255) PRIMARY KEY,
			sender VARCHAR(320),
			subject TEXT,
			replied_at BIGINT,
			expires_at BIGINT,
			INDEX idx_reply_ledger_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	l := &MySQLLedger{
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
func (l *MySQLLedger) Seen(ctx context.Context, key string) (bool, error) {
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
func (l *MySQLLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	if entry.MessageKey == "" {
		return ErrEmptyKey
	}
	stored := *entry
	fillTimes(&stored, l.ttl)

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO reply_ledger (message_key, sender, subject, replied_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			sender = VALUES(sender),
			subject = VALUES(subject),
			replied_at = VALUES(replied_at),
			expires_at = VALUES(expires_at)
	`, stored.MessageKey, stored.Sender, stored.Subject, stored.RepliedAt.Unix(), stored.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (l *MySQLLedger) Cleanup(ctx context.Context) error {
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
func (l *MySQLLedger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if err := l.db.Close(); err != nil {
			l.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
