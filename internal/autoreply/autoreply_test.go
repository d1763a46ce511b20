package autoreply

import (
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap/zaptest"
)

func newTestChecker(t *testing.T) *Checker {
	return NewChecker(Rules{
		OwnAddress:     "bot@example.com",
		IgnoredDomains: []string{"spam.test", " @Newsletters.Example "},
		MinBodyLength:  10,
	}, zaptest.NewLogger(t))
}

func question() *core.IncomingMessage {
	return &core.IncomingMessage{
		From:    "Alice Martin <alice@example.org>",
		Subject: "Question",
		Body:    "What is a CDI?",
	}
}

func TestCheck(t *testing.T) {
	c := newTestChecker(t)

	tests := []struct {
		name   string
		modify func(m *core.IncomingMessage)
		want   string
	}{
		{"plain question", func(m *core.IncomingMessage) {}, ReasonNone},
		{"out of office", func(m *core.IncomingMessage) { m.Subject = "Out of Office: back Monday" }, ReasonSubject},
		{"french auto reply with accents", func(m *core.IncomingMessage) { m.Subject = "RÉPONSE AUTOMATIQUE : absent" }, ReasonSubject},
		{"bounce", func(m *core.IncomingMessage) { m.Subject = "Undeliverable: Question" }, ReasonSubject},
		{"french bounce", func(m *core.IncomingMessage) { m.Subject = "Message non remis : Question" }, ReasonSubject},
		{"payslip not handed over", func(m *core.IncomingMessage) { m.Subject = "Bulletin de paie non remis par mon employeur" }, ReasonNone},
		{"certificate not handed over", func(m *core.IncomingMessage) { m.Subject = "Attestation Pôle emploi non remise" }, ReasonNone},
		{"automatic renewal", func(m *core.IncomingMessage) { m.Subject = "Automatic renewal of my fixed-term contract" }, ReasonNone},
		{"leave question", func(m *core.IncomingMessage) { m.Subject = "Absence pour enfant malade" }, ReasonNone},
		{"mailer daemon", func(m *core.IncomingMessage) { m.From = "MAILER-DAEMON@mx.example.org" }, ReasonSender},
		{"no-reply sender", func(m *core.IncomingMessage) { m.From = "Shop <no-reply@shop.example>" }, ReasonSender},
		{"ignored domain", func(m *core.IncomingMessage) { m.From = "x@spam.test" }, ReasonSenderDomain},
		{"ignored subdomain", func(m *core.IncomingMessage) { m.From = "x@mail.newsletters.example" }, ReasonSenderDomain},
		{"auto-submitted", func(m *core.IncomingMessage) { m.Headers = map[string][]string{"Auto-Submitted": {"auto-replied"}} }, ReasonHeader},
		{"auto-submitted no", func(m *core.IncomingMessage) { m.Headers = map[string][]string{"auto-submitted": {"no"}} }, ReasonNone},
		{"bulk precedence", func(m *core.IncomingMessage) { m.Headers = map[string][]string{"Precedence": {"Bulk"}} }, ReasonHeader},
		{"mailing list", func(m *core.IncomingMessage) { m.Headers = map[string][]string{"List-Id": {"<droit.lists.example>"}} }, ReasonHeader},
		{"own address", func(m *core.IncomingMessage) { m.From = "Bot <BOT@example.com>" }, ReasonOwnAddress},
		{"short body", func(m *core.IncomingMessage) { m.Body = "  CDI ?  " }, ReasonShortBody},
		{"missing sender", func(m *core.IncomingMessage) { m.From = "" }, ReasonMissingSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := question()
			tt.modify(m)
			if got := c.Check(m); got != tt.want {
				t.Errorf("Check() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddressOf(t *testing.T) {
	tests := map[string]string{
		"Alice <Alice@Example.org>":        "alice@example.org",
		"bob@example.org":                  "bob@example.org",
		"\"Broken, Name\" <c@example.org":  "",
		"Weird Name <d@example.org> extra": "d@example.org",
		"no address here":                  "",
	}
	for in, want := range tests {
		if got := AddressOf(in); got != want {
			t.Errorf("AddressOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Réponse Automatique"); got != "reponse automatique" {
		t.Errorf("Fold() = %q", got)
	}
}

func TestSubjectMarkerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("out of office anywhere in the subject is detected", prop.ForAll(
		func(prefix, suffix string, upper bool) bool {
			marker := "Out of Office"
			if upper {
				marker = strings.ToUpper(marker)
			}
			return IsAutomatedSubject(prefix + " " + marker + " " + suffix)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.Property("folding is idempotent", prop.ForAll(
		func(s string) bool {
			once := Fold(s)
			return Fold(once) == once
		},
		gen.UnicodeString(unicode.Latin),
	))

	properties.TestingRun(t)
}
