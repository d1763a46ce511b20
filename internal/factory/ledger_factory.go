package factory

import (
	"fmt"

	"github.com/mikey/llm-answer-bot/internal/adapters/ledger"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// Ledger is a reply ledger whose background cleanup can be stopped
type Ledger interface {
	core.ReplyLedger
	Stop()
}

// LedgerFactory creates reply ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates a reply ledger based on the configuration
func (f *LedgerFactory) CreateLedger() (Ledger, error) {
	ledgerCfg, err := f.cfg.GetLedger()
	if err != nil {
		return nil, err
	}

	switch ledgerCfg.Type {
	case "memory":
		f.logger.Warn("Using the in-memory reply ledger, duplicates are possible across restarts")
		return ledger.NewMemoryLedger(f.logger, ledgerCfg.TTL, ledgerCfg.CleanupFrequency), nil
	case "sqlite":
		return ledger.NewSQLiteLedger(ledgerCfg.SQLitePath, f.logger, ledgerCfg.TTL, ledgerCfg.CleanupFrequency)
	case "mysql":
		if ledgerCfg.MySQLDSN == "" {
			return nil, &config.MissingKeyError{Key: "ledger.mysql_dsn", Env: config.EnvName("ledger.mysql_dsn")}
		}
		return ledger.NewMySQLLedger(ledgerCfg.MySQLDSN, f.logger, ledgerCfg.TTL, ledgerCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", ledgerCfg.Type)
	}
}
