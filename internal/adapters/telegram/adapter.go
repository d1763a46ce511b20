package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/retry"
	"github.com/mikey/llm-answer-bot/internal/sysinfo"
	"github.com/mikey/llm-answer-bot/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// BotAPI is the subset of *tgbotapi.BotAPI used by the adapter
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Adapter answers Telegram messages with the model
type Adapter struct {
	bot        BotAPI
	generator  core.Generator
	cfg        config.TelegramConfig
	params     core.GenerationParams
	grace      time.Duration
	sem        *semaphore.Weighted
	allowed    map[int64]struct{}
	sendPolicy retry.Policy
	diskPath   string
	startedAt  time.Time
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewAdapter creates a new Telegram adapter
func NewAdapter(
	bot BotAPI,
	generator core.Generator,
	cfg config.TelegramConfig,
	params core.GenerationParams,
	grace time.Duration,
	logger *zap.Logger,
) *Adapter {
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	allowed := make(map[int64]struct{}, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		allowed[id] = struct{}{}
	}

	return &Adapter{
		bot:        bot,
		generator:  generator,
		cfg:        cfg,
		params:     params,
		grace:      grace,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		allowed:    allowed,
		sendPolicy: retry.DefaultPolicy,
		diskPath:   "/",
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// WithSendPolicy overrides the retry policy used for outgoing messages
func (a *Adapter) WithSendPolicy(p retry.Policy) *Adapter {
	a.sendPolicy = p
	return a
}

// Name returns the channel name
func (a *Adapter) Name() string {
	return core.ChannelTelegram
}

// Run long-polls for updates until ctx is cancelled, then waits up to the
// grace period for in-flight answers before abandoning them.
func (a *Adapter) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeout
	updates := a.bot.GetUpdatesChan(u)

	handlerCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	defer abandon()
	handlerCtx = core.WithChannel(handlerCtx, core.ChannelTelegram)

	a.logger.Info("Telegram polling started",
		zap.Int("max_concurrency", a.cfg.MaxConcurrency),
		zap.Int("allowed_users", len(a.allowed)))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Telegram channel stopping")
			a.bot.StopReceivingUpdates()
			a.drain(abandon)
			return nil
		case update, ok := <-updates:
			if !ok {
				a.drain(abandon)
				return nil
			}
			a.handleUpdate(ctx, handlerCtx, update)
		}
	}
}

func (a *Adapter) drain(abandon context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(a.grace):
		a.logger.Warn("Grace period expired, abandoning in-flight answers", zap.Duration("grace_period", a.grace))
		abandon()
		<-done
	}
}

// handleUpdate queues answers on the semaphore under runCtx, so work still
// waiting for a slot at shutdown is dropped. Answers in flight run on ctx.
func (a *Adapter) handleUpdate(runCtx, ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !a.isAllowed(msg.From.ID) {
		a.logger.Warn("Unauthorized telegram user",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		a.send(ctx, chatID, unauthorizedText, "")
		return
	}

	if msg.IsCommand() {
		a.handleCommand(ctx, chatID, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.sem.Acquire(runCtx, 1); err != nil {
			a.logger.Info("Dropping queued message at shutdown", zap.Int64("chat_id", chatID))
			return
		}
		defer a.sem.Release(1)
		if runCtx.Err() != nil {
			a.logger.Info("Dropping queued message at shutdown", zap.Int64("chat_id", chatID))
			return
		}
		a.answer(ctx, chatID, msg.From, text)
	}()
}

func (a *Adapter) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.send(ctx, chatID, welcomeText, tgbotapi.ModeMarkdown)
	case "help":
		a.send(ctx, chatID, helpText, tgbotapi.ModeMarkdown)
	case "status":
		a.send(ctx, chatID, a.statusText(), tgbotapi.ModeMarkdown)
	default:
		a.send(ctx, chatID, unknownCommandText, "")
	}
}

func (a *Adapter) answer(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	requestID := uuid.NewString()
	logger := a.logger.With(
		zap.String("request_id", requestID),
		zap.Int64("user_id", from.ID),
		zap.Int64("chat_id", chatID))
	logger.Info("Telegram message received", zap.Int("text_len", len(text)))

	if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		logger.Debug("Failed to send typing indicator", zap.Error(err))
	}

	start := time.Now()
	response, err := a.generator.Generate(ctx, text, a.params)
	switch {
	case errors.Is(err, core.ErrNoAnswer):
		response = noAnswerText
	case err != nil:
		logger.Error("Failed to generate answer", zap.Error(err))
		a.send(ctx, chatID, generationErrText, "")
		return
	}
	logger.Info("Generated response", zap.Duration("elapsed", time.Since(start)))

	if !a.send(ctx, chatID, response, "") {
		a.send(ctx, chatID, sendErrText, "")
	}
}

// send delivers text in chunks below the message size limit and reports whether every chunk went out
func (a *Adapter) send(ctx context.Context, chatID int64, text, parseMode string) bool {
	for _, chunk := range utils.SplitMessage(text, utils.TelegramMaxMessageLen) {
		if err := a.sendChunk(ctx, chatID, chunk, parseMode); err != nil {
			a.logger.Error("Telegram send failed after retries", zap.Int64("chat_id", chatID), zap.Error(err))
			return false
		}
	}
	return true
}

func (a *Adapter) sendChunk(ctx context.Context, chatID int64, text, parseMode string) error {
	return retry.Do(ctx, a.sendPolicy, a.logger, "telegram send", func(ctx context.Context) error {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode
		_, err := a.bot.Send(msg)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.RetryAfter > 0:
				a.logger.Warn("Telegram rate limited, backing off", zap.Int("retry_after", apiErr.RetryAfter))
				select {
				case <-ctx.Done():
					return retry.Permanent(ctx.Err())
				case <-time.After(time.Duration(apiErr.RetryAfter) * time.Second):
				}
			case parseMode != "" && strings.Contains(apiErr.Message, "can't parse entities"):
				parseMode = ""
			}
		}
		return err
	})
}

func (a *Adapter) isAllowed(userID int64) bool {
	if len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[userID]
	return ok
}

func (a *Adapter) statusText() string {
	info := a.generator.Describe()
	report := sysinfo.Collect(a.diskPath)

	var sb strings.Builder
	sb.WriteString("📊 *Informations système:*\n\n")

	modelState := "Non chargé"
	if info.Loaded {
		modelState = "Chargé"
	}
	fmt.Fprintf(&sb, "🤖 Modèle: %s (%s / %s)\n", modelState, info.Provider, info.Name)
	fmt.Fprintf(&sb, "🔧 Device: %s\n", strings.ToUpper(orDefault(info.Device, "auto")))
	if info.Quantization != "" {
		fmt.Fprintf(&sb, "🧮 Quantification: %s\n", info.Quantization)
	}
	fmt.Fprintf(&sb, "🖥️ CPU: %d cœurs", report.CPUs)
	if report.LoadErr == nil {
		fmt.Fprintf(&sb, ", charge %.2f %.2f %.2f", report.Load.One, report.Load.Five, report.Load.Fifteen)
	}
	sb.WriteString("\n")

	sb.WriteString("💾 RAM: ")
	if report.MemoryErr != nil {
		sb.WriteString(unavailable)
	} else {
		sb.WriteString(sysinfo.FormatUsage(report.Memory))
	}
	sb.WriteString("\n💿 Disque: ")
	if report.DiskErr != nil {
		sb.WriteString(unavailable)
	} else {
		sb.WriteString(sysinfo.FormatUsage(report.Disk))
	}
	sb.WriteString("\n⏱️ Uptime système: ")
	if report.UptimeErr != nil {
		sb.WriteString(unavailable)
	} else {
		sb.WriteString(sysinfo.FormatDuration(report.Uptime))
	}
	fmt.Fprintf(&sb, "\n🟢 Bot actif depuis: %s\n", sysinfo.FormatDuration(time.Since(a.startedAt)))

	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
