package imap

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/retry"
	"go.uber.org/zap/zaptest"
)

const question = "From: Alice <alice@example.org>\r\n" +
	"To: bot@example.com\r\n" +
	"Subject: Question\r\n" +
	"Message-ID: <q1@example.org>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"What is a CDI?\r\n"

func startServer(t *testing.T, unseen ...string) config.IMAPConfig {
	t.Helper()
	be := memory.New()

	user, err := be.Login(nil, "username", "password")
	if err != nil {
		t.Fatalf("backend login: %v", err)
	}
	mbox, err := user.GetMailbox("INBOX")
	if err != nil {
		t.Fatalf("backend mailbox: %v", err)
	}
	for _, msg := range unseen {
		if err := mbox.CreateMessage(nil, time.Now(), bytes.NewBufferString(msg)); err != nil {
			t.Fatalf("backend append: %v", err)
		}
	}

	s := server.New(be)
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	return config.IMAPConfig{
		Host:          "127.0.0.1",
		Port:          ln.Addr().(*net.TCPAddr).Port,
		TLS:           TLSNone,
		Mailbox:       "INBOX",
		LoginAttempts: 2,
		Timeout:       5 * time.Second,
	}
}

var fastRetry = retry.Policy{Attempts: 2, BaseDelay: time.Millisecond}

func TestFetchUnseenAndMarkSeen(t *testing.T) {
	cfg := startServer(t, question)
	d := NewDialer(cfg, "username", "password", zaptest.NewLogger(t)).WithRetryPolicy(fastRetry)
	ctx := context.Background()

	mb, err := d.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer mb.Close()

	msgs, err := mb.FetchUnseen(ctx)
	if err != nil {
		t.Fatalf("FetchUnseen() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("FetchUnseen() returned %d messages, want 1 (the seeded message is already seen)", len(msgs))
	}
	if !strings.Contains(string(msgs[0].Raw), "What is a CDI?") {
		t.Errorf("raw message = %q", msgs[0].Raw)
	}

	again, err := mb.FetchUnseen(ctx)
	if err != nil || len(again) != 1 {
		t.Fatalf("fetching must not set \\Seen: got %d messages, err %v", len(again), err)
	}

	if err := mb.MarkSeen(ctx, msgs[0].UID); err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}

	after, err := mb.FetchUnseen(ctx)
	if err != nil {
		t.Fatalf("FetchUnseen() error = %v", err)
	}
	if len(after) != 0 {
		t.Errorf("FetchUnseen() after MarkSeen returned %d messages", len(after))
	}
}

func TestAllSeenMailbox(t *testing.T) {
	cfg := startServer(t)
	d := NewDialer(cfg, "username", "password", zaptest.NewLogger(t)).WithRetryPolicy(fastRetry)

	mb, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer mb.Close()

	msgs, err := mb.FetchUnseen(context.Background())
	if err != nil || len(msgs) != 0 {
		t.Errorf("FetchUnseen() = %d messages, %v", len(msgs), err)
	}
}

func TestDialBadCredentials(t *testing.T) {
	cfg := startServer(t)
	d := NewDialer(cfg, "username", "wrong", zaptest.NewLogger(t)).WithRetryPolicy(fastRetry)

	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("Dial() should fail with bad credentials")
	}
}

func TestDialUnknownMailbox(t *testing.T) {
	cfg := startServer(t)
	cfg.Mailbox = "Questions"
	d := NewDialer(cfg, "username", "password", zaptest.NewLogger(t)).WithRetryPolicy(fastRetry)

	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("Dial() should fail for a missing mailbox")
	}
}

func TestTLSMode(t *testing.T) {
	tests := []struct {
		port int
		mode string
		want string
	}{
		{993, TLSAuto, TLSImplicit},
		{143, TLSAuto, TLSAuto},
		{143, TLSNone, TLSNone},
		{1143, TLSStart, TLSStart},
	}
	for _, tt := range tests {
		d := NewDialer(config.IMAPConfig{Port: tt.port, TLS: tt.mode}, "", "", nil)
		if got := d.tlsMode(); got != tt.want {
			t.Errorf("tlsMode(%d, %s) = %s, want %s", tt.port, tt.mode, got, tt.want)
		}
	}
}
