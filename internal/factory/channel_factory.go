package factory

import (
	"errors"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/llm-answer-bot/internal/adapters/email"
	"github.com/mikey/llm-answer-bot/internal/adapters/imap"
	"github.com/mikey/llm-answer-bot/internal/adapters/smtp"
	"github.com/mikey/llm-answer-bot/internal/adapters/telegram"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/ports"
	"go.uber.org/zap"
)

// ChannelFactory creates the channel adapters based on configuration
type ChannelFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	models    *ModelFactory
	ledgers   *LedgerFactory
	generator core.Generator

	mu      sync.Mutex
	closers []func()
}

// NewChannelFactory creates a new channel factory
func NewChannelFactory(
	cfg *config.Config,
	logger *zap.Logger,
	models *ModelFactory,
	ledgers *LedgerFactory,
	service *core.ModelService,
) *ChannelFactory {
	return &ChannelFactory{
		cfg:       cfg,
		logger:    logger,
		models:    models,
		ledgers:   ledgers,
		generator: service,
	}
}

// CreateChannel creates the adapter for a channel name
func (f *ChannelFactory) CreateChannel(name string) (ports.Channel, error) {
	switch name {
	case core.ChannelTelegram:
		return f.CreateTelegram()
	case core.ChannelEmail:
		return f.CreateEmail()
	default:
		return nil, fmt.Errorf("unsupported channel: %s", name)
	}
}

// CreateTelegram creates the Telegram adapter, connecting to the Bot API
func (f *ChannelFactory) CreateTelegram() (*telegram.Adapter, error) {
	tgCfg, err := f.cfg.GetTelegram()
	if err != nil {
		return nil, err
	}
	grace, err := f.cfg.GetShutdownGrace()
	if err != nil {
		return nil, err
	}

	logger := f.logger.With(zap.String("channel", core.ChannelTelegram))
	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("botapi"))); err != nil {
		return nil, fmt.Errorf("failed to set telegram logger: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(tgCfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Authorized on telegram", zap.String("bot", bot.Self.UserName))

	return telegram.NewAdapter(
		bot,
		f.generator,
		tgCfg,
		f.models.GenerationParams(core.ChannelTelegram),
		grace,
		logger,
	), nil
}

// CreateEmail creates the email poller with its IMAP, SMTP and ledger dependencies
func (f *ChannelFactory) CreateEmail() (*email.Poller, error) {
	emailCfg, err := f.cfg.GetEmail()
	if err != nil {
		return nil, err
	}
	imapCfg, err := f.cfg.GetIMAP()
	if err != nil {
		return nil, err
	}
	smtpCfg, err := f.cfg.GetSMTP()
	if err != nil {
		return nil, err
	}

	replies, err := f.ledgers.CreateLedger()
	if err != nil {
		return nil, fmt.Errorf("failed to create reply ledger: %w", err)
	}
	f.mu.Lock()
	f.closers = append(f.closers, replies.Stop)
	f.mu.Unlock()

	logger := f.logger.With(zap.String("channel", core.ChannelEmail))
	return email.NewPoller(
		emailCfg,
		f.models.GenerationParams(core.ChannelEmail),
		imap.NewDialer(imapCfg, emailCfg.Address, emailCfg.Password, logger),
		smtp.NewSender(smtpCfg, emailCfg.Address, emailCfg.Password, emailCfg.Domain, logger),
		f.generator,
		replies,
		logger,
	), nil
}

// Close releases resources held by the created channels
func (f *ChannelFactory) Close() {
	f.mu.Lock()
	closers := f.closers
	f.closers = nil
	f.mu.Unlock()
	for _, c := range closers {
		c()
	}
}

// ChannelNames expands a command name into the channels it runs
func ChannelNames(command string) ([]string, error) {
	switch command {
	case core.ChannelTelegram, core.ChannelEmail:
		return []string{command}, nil
	case "all":
		return []string{core.ChannelTelegram, core.ChannelEmail}, nil
	default:
		return nil, errors.New("unknown adapter " + command)
	}
}
