package email

import (
	"strings"
	"testing"

	"github.com/mikey/llm-answer-bot/internal/core"
)

func TestParseMultipartPrefersPlainText(t *testing.T) {
	raw := "From: =?utf-8?q?Ren=C3=A9?= <rene@example.org>\r\n" +
		"Subject: =?utf-8?q?Cong=C3=A9s_pay=C3=A9s?=\r\n" +
		"Message-ID: <m1@example.org>\r\n" +
		"References: <m0@example.org>\r\n" +
		"Auto-Submitted: no\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=b1\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Combien de jours de cong=E9s ?\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>ignored</p>\r\n" +
		"--b1--\r\n"

	msg, err := ParseMessage(&core.RawMessage{UID: 3, Raw: []byte(raw)})
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.From != "rene@example.org" {
		t.Errorf("From = %q", msg.From)
	}
	if msg.Subject != "Congés payés" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.Body != "Combien de jours de congés ?" {
		t.Errorf("Body = %q", msg.Body)
	}
	if msg.MessageID != "m1@example.org" || len(msg.References) != 1 {
		t.Errorf("ids = %q %v", msg.MessageID, msg.References)
	}
	if got := msg.Headers["Auto-Submitted"]; len(got) != 1 || got[0] != "no" {
		t.Errorf("Headers[Auto-Submitted] = %v", got)
	}
}

func TestParseHTMLOnly(t *testing.T) {
	raw := "From: sam@example.org\r\n" +
		"Subject: Question\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{color:red}</style></head><body><p>Quelle est la durée</p><p>du préavis ?</p><script>x()</script></body></html>\r\n"

	msg, err := ParseMessage(&core.RawMessage{UID: 4, Raw: []byte(raw)})
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Body != "Quelle est la durée\ndu préavis ?" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestParseUndecodableBodyIsEmpty(t *testing.T) {
	raw := "From: sam@example.org\r\n" +
		"Subject: Question\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"\r\n" +
		"\x00\x01\x02\r\n"

	msg, err := ParseMessage(&core.RawMessage{UID: 5, Raw: []byte(raw)})
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.Body != "" {
		t.Errorf("Body = %q, want empty", msg.Body)
	}
}

func TestMessageKeyFallsBackToHash(t *testing.T) {
	withID := &core.IncomingMessage{MessageID: "x@example.org"}
	if MessageKey(withID) != "x@example.org" {
		t.Error("Message-ID should be the key")
	}

	a := &core.IncomingMessage{UID: 1, Subject: "Question", From: "a@example.org"}
	b := &core.IncomingMessage{UID: 2, Subject: "Question", From: "a@example.org"}
	if MessageKey(a) == MessageKey(b) {
		t.Error("different UIDs must give different keys")
	}
	if !strings.HasPrefix(MessageKey(a), "sha256:") || MessageKey(a) != MessageKey(a) {
		t.Errorf("MessageKey() = %q", MessageKey(a))
	}
}

func TestReplySubject(t *testing.T) {
	tests := map[string]string{
		"Question":     "Re: Question",
		"Re: Question": "Re: Question",
		"RE: Question": "RE: Question",
		"  Congés ":    "Re: Congés",
		"":             "Re: ",
	}
	for in, want := range tests {
		if got := ReplySubject(in); got != want {
			t.Errorf("ReplySubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildReplyUsesReplyTo(t *testing.T) {
	msg := &core.IncomingMessage{
		From:       "alice@example.org",
		ReplyTo:    "alice.work@example.org",
		Subject:    "Question",
		MessageID:  "m2@example.org",
		References: []string{"m1@example.org"},
	}
	reply := BuildReply("bot@example.com", msg, "body")
	if reply.To != "alice.work@example.org" {
		t.Errorf("To = %q", reply.To)
	}
	if len(reply.References) != 2 || reply.References[1] != "m2@example.org" {
		t.Errorf("References = %v", reply.References)
	}
}
