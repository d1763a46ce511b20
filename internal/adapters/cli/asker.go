package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mikey/llm-answer-bot/internal/adapters/email"
	"github.com/mikey/llm-answer-bot/internal/autoreply"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// Asker answers questions from the terminal
type Asker struct {
	generator core.Generator
	logger    *zap.Logger
	verbose   bool
	out       io.Writer
}

// NewAsker creates a new terminal asker writing to out
func NewAsker(generator core.Generator, logger *zap.Logger, verbose bool, out io.Writer) *Asker {
	return &Asker{
		generator: generator,
		logger:    logger,
		verbose:   verbose,
		out:       out,
	}
}

// Ask generates an answer to a question and prints it
func (a *Asker) Ask(ctx context.Context, question string, params core.GenerationParams) (string, error) {
	info := a.generator.Describe()

	fmt.Fprintf(a.out, "\n=== Question ===\n")
	fmt.Fprintf(a.out, "%s\n", question)
	if a.verbose {
		fmt.Fprintf(a.out, "\nModel: %s (%s)\n", info.Name, info.Provider)
		fmt.Fprintf(a.out, "Max tokens: %d, temperature: %.2f, top-p: %.2f\n", params.MaxTokens, params.Temperature, params.TopP)
	}

	start := time.Now()
	answer, err := a.generator.Generate(core.WithChannel(ctx, core.ChannelCLI), question, params)
	if err != nil {
		a.logger.Error("Failed to generate answer", zap.Error(err))
		return "", err
	}

	fmt.Fprintf(a.out, "\n=== Réponse ===\n")
	fmt.Fprintf(a.out, "%s\n", answer)
	fmt.Fprintf(a.out, "\nModel used: %s\n", info.Name)
	fmt.Fprintf(a.out, "Processing time: %v\n", time.Since(start).Round(time.Millisecond))
	return answer, nil
}

// DraftReply runs a raw email through the same filter, prompt and template
// the email channel uses and prints the reply it would send, without sending it
func (a *Asker) DraftReply(ctx context.Context, raw []byte, cfg config.EmailConfig, params core.GenerationParams) (*core.OutgoingReply, error) {
	msg, err := email.ParseMessage(&core.RawMessage{Raw: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	fmt.Fprintf(a.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(a.out, "From: %s\n", msg.From)
	fmt.Fprintf(a.out, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(a.out, "Message-ID: %s\n", msg.MessageID)
	fmt.Fprintf(a.out, "Body length: %d bytes\n", len(msg.Body))

	checker := autoreply.NewChecker(autoreply.Rules{
		OwnAddress:     cfg.Address,
		IgnoredDomains: cfg.IgnoredSenderDomains,
		MinBodyLength:  cfg.MinBodyLength,
	}, a.logger)
	if reason := checker.Check(msg); reason != autoreply.ReasonNone {
		fmt.Fprintf(a.out, "\nNo reply: message skipped (%s)\n", reason)
		return nil, nil
	}

	start := time.Now()
	answer, err := a.generator.Generate(core.WithChannel(ctx, core.ChannelEmail), email.BuildPrompt(msg), params)
	if errors.Is(err, core.ErrNoAnswer) {
		answer = email.FallbackAnswer
	} else if err != nil {
		a.logger.Error("Failed to generate answer", zap.Error(err))
		return nil, err
	}

	tmpl := email.Template{Greeting: cfg.Greeting, Disclaimer: cfg.Disclaimer, Signature: cfg.Signature}
	reply := email.BuildReply(cfg.Address, msg, tmpl.ReplyBody(answer))

	fmt.Fprintf(a.out, "\n=== Reply ===\n")
	fmt.Fprintf(a.out, "To: %s\n", reply.To)
	fmt.Fprintf(a.out, "Subject: %s\n", reply.Subject)
	if reply.InReplyTo != "" {
		fmt.Fprintf(a.out, "In-Reply-To: <%s>\n", reply.InReplyTo)
	}
	fmt.Fprintf(a.out, "\n%s\n", reply.Body)
	fmt.Fprintf(a.out, "\nProcessing time: %v\n", time.Since(start).Round(time.Millisecond))
	return reply, nil
}
