package email

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-answer-bot/internal/autoreply"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// settleTimeout bounds the ledger write and seen marking that follow a decision.
// Both still run when the cycle is cancelled mid-message.
const settleTimeout = 30 * time.Second

// CycleStats summarises one polling cycle
type CycleStats struct {
	ID      string
	Fetched int
	Replied int
	Skipped int
	Failed  int
}

// Poller answers questions received in an IMAP mailbox
type Poller struct {
	dialer    core.MailboxDialer
	sender    core.MailSender
	generator core.Generator
	ledger    core.ReplyLedger
	checker   *autoreply.Checker
	template  Template
	cfg       config.EmailConfig
	params    core.GenerationParams
	logger    *zap.Logger
}

// NewPoller creates a new mailbox poller
func NewPoller(
	cfg config.EmailConfig,
	params core.GenerationParams,
	dialer core.MailboxDialer,
	sender core.MailSender,
	generator core.Generator,
	ledger core.ReplyLedger,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		dialer:    dialer,
		sender:    sender,
		generator: generator,
		ledger:    ledger,
		checker: autoreply.NewChecker(autoreply.Rules{
			OwnAddress:     cfg.Address,
			IgnoredDomains: cfg.IgnoredSenderDomains,
			MinBodyLength:  cfg.MinBodyLength,
		}, logger),
		template: Template{
			Greeting:   cfg.Greeting,
			Disclaimer: cfg.Disclaimer,
			Signature:  cfg.Signature,
		},
		cfg:    cfg,
		params: params,
		logger: logger,
	}
}

// Name returns the channel name
func (p *Poller) Name() string {
	return core.ChannelEmail
}

// Run polls until ctx is cancelled. The first cycle starts immediately and
// the next one is scheduled only once the previous cycle has ended.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("Starting email monitoring",
		zap.String("address", p.cfg.Address),
		zap.Duration("check_interval", p.cfg.CheckInterval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Email monitoring stopped")
			return nil
		case <-timer.C:
			p.RunCycle(ctx)
			timer.Reset(p.cfg.CheckInterval)
		}
	}
}

// RunCycle performs one connect, fetch, process and mark pass
func (p *Poller) RunCycle(ctx context.Context) CycleStats {
	stats := CycleStats{ID: uuid.NewString()}
	logger := p.logger.With(zap.String("cycle_id", stats.ID))

	if p.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.CycleTimeout)
		defer cancel()
	}
	ctx = core.WithChannel(ctx, core.ChannelEmail)

	mailbox, err := p.dialer.Dial(ctx)
	if err != nil {
		logger.Error("Failed to connect to mailbox", zap.Error(err))
		return stats
	}
	defer func() {
		if err := mailbox.Close(); err != nil {
			logger.Warn("Failed to close mailbox session", zap.Error(err))
		}
	}()

	raws, err := mailbox.FetchUnseen(ctx)
	if err != nil {
		logger.Error("Failed to fetch unseen messages", zap.Error(err))
		if len(raws) == 0 {
			return stats
		}
	}
	stats.Fetched = len(raws)

	for _, raw := range raws {
		if ctx.Err() != nil {
			logger.Warn("Cycle interrupted, remaining messages stay unseen", zap.Error(ctx.Err()))
			break
		}

		switch p.process(ctx, logger, raw) {
		case outcomeReplied:
			stats.Replied++
		case outcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
			continue
		}

		settleCtx, cancel := settled(ctx)
		if err := mailbox.MarkSeen(settleCtx, raw.UID); err != nil {
			logger.Error("Failed to mark message as seen", zap.Uint32("uid", raw.UID), zap.Error(err))
		}
		cancel()
	}

	logger.Info("Email cycle completed",
		zap.Int("fetched", stats.Fetched),
		zap.Int("replied", stats.Replied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeReplied
)

// process handles one message; only replied and skipped messages get marked
func (p *Poller) process(ctx context.Context, logger *zap.Logger, raw *core.RawMessage) outcome {
	msg, err := ParseMessage(raw)
	if err != nil {
		// an unreadable message would be refetched forever
		logger.Warn("Skipping unparseable message", zap.Uint32("uid", raw.UID), zap.Error(err))
		return outcomeSkipped
	}
	logger = logger.With(
		zap.Uint32("uid", msg.UID),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject))

	if reason := p.checker.Check(msg); reason != autoreply.ReasonNone {
		logger.Info("Skipping message", zap.String("reason", reason))
		return outcomeSkipped
	}

	key := MessageKey(msg)
	seen, err := p.ledger.Seen(ctx, key)
	if err != nil {
		logger.Warn("Failed to query reply ledger", zap.Error(err))
	} else if seen {
		logger.Info("Reply already sent for this message", zap.String("message_key", key))
		return outcomeSkipped
	}

	logger.Info("Processing email")
	answer, err := p.generator.Generate(ctx, BuildPrompt(msg), p.params)
	if err != nil {
		if !errors.Is(err, core.ErrNoAnswer) {
			logger.Error("Failed to generate answer", zap.Error(err))
			return outcomeFailed
		}
		logger.Warn("Model produced no answer, sending fallback")
		answer = FallbackAnswer
	}

	reply := BuildReply(p.cfg.Address, msg, p.template.ReplyBody(answer))
	if err := p.sender.Send(ctx, reply); err != nil {
		logger.Error("Failed to send reply", zap.Error(err))
		return outcomeFailed
	}

	settleCtx, cancel := settled(ctx)
	defer cancel()
	if err := p.ledger.Record(settleCtx, &core.LedgerEntry{
		MessageKey: key,
		Sender:     msg.From,
		Subject:    msg.Subject,
		RepliedAt:  time.Now(),
	}); err != nil {
		logger.Warn("Failed to record reply in ledger", zap.Error(err))
	}

	logger.Info("Successfully responded to email", zap.String("reply_to", reply.To))
	return outcomeReplied
}

// settled detaches ctx from cancellation and bounds it by settleTimeout
func settled(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}
