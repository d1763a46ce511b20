package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/llm-answer-bot/internal/adapters/email"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap/zaptest"
)

type stubGenerator struct {
	answer   string
	err      error
	question string
}

func (g *stubGenerator) Generate(ctx context.Context, question string, params core.GenerationParams) (string, error) {
	g.question = question
	return g.answer, g.err
}

func (g *stubGenerator) Describe() core.ModelInfo {
	return core.ModelInfo{Provider: "openai", Name: "code-du-travail", Loaded: true}
}

var emailCfg = config.EmailConfig{
	Address:       "bot@example.org",
	Greeting:      "Bonjour,",
	Disclaimer:    "Réponse informative.",
	Signature:     "Assistant IA",
	MinBodyLength: 10,
}

const question = "From: Alice <alice@example.com>\r\n" +
	"To: bot@example.org\r\n" +
	"Subject: Question\r\n" +
	"Message-ID: <q1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"What is a CDI?\r\n"

func TestAskPrintsAnswer(t *testing.T) {
	gen := &stubGenerator{answer: "Un contrat à durée indéterminée."}
	var out bytes.Buffer
	asker := NewAsker(gen, zaptest.NewLogger(t), true, &out)

	answer, err := asker.Ask(context.Background(), "Qu'est-ce qu'un CDI ?", core.GenerationParams{MaxTokens: 100})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer != gen.answer {
		t.Errorf("answer = %q", answer)
	}
	for _, want := range []string{"=== Question ===", "Qu'est-ce qu'un CDI ?", "=== Réponse ===", gen.answer, "code-du-travail"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestAskReturnsModelError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("timeout")}
	asker := NewAsker(gen, zaptest.NewLogger(t), false, &bytes.Buffer{})

	if _, err := asker.Ask(context.Background(), "q", core.GenerationParams{}); err == nil {
		t.Error("Ask() should return the model error")
	}
}

func TestDraftReply(t *testing.T) {
	gen := &stubGenerator{answer: "Un CDI est un contrat sans date de fin."}
	var out bytes.Buffer
	asker := NewAsker(gen, zaptest.NewLogger(t), false, &out)

	reply, err := asker.DraftReply(context.Background(), []byte(question), emailCfg, core.GenerationParams{MaxTokens: 100})
	if err != nil {
		t.Fatalf("DraftReply() error = %v", err)
	}
	if reply == nil {
		t.Fatal("DraftReply() returned no reply")
	}
	if reply.Subject != "Re: Question" || reply.To != "alice@example.com" || reply.InReplyTo != "q1@example.com" {
		t.Errorf("reply = %+v", reply)
	}
	if !strings.Contains(reply.Body, "Réponse informative.") || !strings.Contains(reply.Body, gen.answer) {
		t.Errorf("body = %q", reply.Body)
	}
	if !strings.Contains(gen.question, "What is a CDI?") {
		t.Errorf("prompt = %q, want the email body", gen.question)
	}
}

func TestDraftReplySkipsAutoReplies(t *testing.T) {
	gen := &stubGenerator{answer: "unused"}
	raw := strings.Replace(question, "Subject: Question", "Subject: Out of Office", 1)

	reply, err := NewAsker(gen, zaptest.NewLogger(t), false, &bytes.Buffer{}).
		DraftReply(context.Background(), []byte(raw), emailCfg, core.GenerationParams{})
	if err != nil || reply != nil {
		t.Errorf("DraftReply() = %v, %v, want no reply", reply, err)
	}
	if gen.question != "" {
		t.Error("skipped messages must not reach the model")
	}
}

func TestDraftReplyFallsBackWhenNoAnswer(t *testing.T) {
	gen := &stubGenerator{err: core.ErrNoAnswer}

	reply, err := NewAsker(gen, zaptest.NewLogger(t), false, &bytes.Buffer{}).
		DraftReply(context.Background(), []byte(question), emailCfg, core.GenerationParams{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Body, email.FallbackAnswer) {
		t.Errorf("body = %q, want the fallback answer", reply.Body)
	}
}
