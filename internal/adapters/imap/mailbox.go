package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"

	goimap "github.com/emersion/go-imap"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-imap/client"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/retry"
	"go.uber.org/zap"
)

// TLS modes
const (
	TLSAuto     = "auto"
	TLSImplicit = "tls"
	TLSStart    = "starttls"
	TLSNone     = "none"
)

// ClientName is sent in the IMAP ID command
const ClientName = "llm-answer-bot"

// Dialer opens authenticated IMAP sessions
type Dialer struct {
	cfg       config.IMAPConfig
	username  string
	password  string
	tlsConfig *tls.Config
	policy    retry.Policy
	logger    *zap.Logger
}

// NewDialer creates a new IMAP dialer
func NewDialer(cfg config.IMAPConfig, username, password string, logger *zap.Logger) *Dialer {
	policy := retry.DefaultPolicy
	policy.Attempts = cfg.LoginAttempts

	return &Dialer{
		cfg:       cfg,
		username:  username,
		password:  password,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		policy:    policy,
		logger:    logger,
	}
}

// WithRetryPolicy overrides the login retry policy
func (d *Dialer) WithRetryPolicy(p retry.Policy) *Dialer {
	d.policy = p
	return d
}

// Dial connects, logs in and selects the configured mailbox
func (d *Dialer) Dial(ctx context.Context) (core.Mailbox, error) {
	var c *client.Client
	err := retry.Do(ctx, d.policy, d.logger, "imap login", func(ctx context.Context) error {
		var err error
		c, err = d.connect(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := c.Select(d.cfg.Mailbox, false); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select mailbox %s: %w", d.cfg.Mailbox, err)
	}

	return &session{c: c, logger: d.logger}, nil
}

func (d *Dialer) connect(ctx context.Context) (*client.Client, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	mode := d.tlsMode()

	dialer := &net.Dialer{Timeout: d.cfg.Timeout}
	var conn net.Conn
	var err error
	if mode == TLSImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: d.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}
	c.Timeout = d.cfg.Timeout

	if mode == TLSStart || mode == TLSAuto {
		ok, err := c.SupportStartTLS()
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("failed to query IMAP capabilities: %w", err)
		}
		if ok {
			if err := c.StartTLS(d.tlsConfig); err != nil {
				c.Logout()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		} else if mode == TLSStart {
			c.Logout()
			return nil, fmt.Errorf("IMAP server does not support STARTTLS")
		}
	}

	// some providers refuse LOGIN until the client identifies itself
	if ok, _ := c.Support("ID"); ok {
		if _, err := id.NewClient(c).ID(id.ID{id.FieldName: ClientName}); err != nil {
			d.logger.Debug("IMAP ID command failed", zap.Error(err))
		}
	}

	if err := c.Login(d.username, d.password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	d.logger.Debug("IMAP session established",
		zap.String("server", addr),
		zap.String("tls", mode))
	return c, nil
}

func (d *Dialer) tlsMode() string {
	if d.cfg.TLS != TLSAuto && d.cfg.TLS != "" {
		return d.cfg.TLS
	}
	if d.cfg.Port == 993 {
		return TLSImplicit
	}
	return TLSAuto
}

// session is one selected mailbox
type session struct {
	c      *client.Client
	logger *zap.Logger
}

// FetchUnseen returns the full source of every unseen message without setting \Seen
func (s *session) FetchUnseen(ctx context.Context) ([]*core.RawMessage, error) {
	stop := context.AfterFunc(ctx, func() { s.c.Terminate() })
	defer stop()

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := s.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{goimap.FetchUid, section.FetchItem()}
	messages := make(chan *goimap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.c.UidFetch(seqSet, items, messages)
	}()

	var raws []*core.RawMessage
	for msg := range messages {
		if msg == nil {
			continue
		}
		literal := msg.GetBody(section)
		if literal == nil {
			s.logger.Warn("Server returned no body for message", zap.Uint32("uid", msg.Uid))
			continue
		}
		body, err := io.ReadAll(literal)
		if err != nil {
			s.logger.Warn("Failed to read message body", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		raws = append(raws, &core.RawMessage{UID: msg.Uid, Raw: body})
	}

	if err := <-done; err != nil {
		return raws, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return raws, nil
}

// MarkSeen sets \Seen on a message
func (s *session) MarkSeen(ctx context.Context, uid uint32) error {
	stop := context.AfterFunc(ctx, func() { s.c.Terminate() })
	defer stop()

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	if err := s.c.UidStore(seqSet, item, []interface{}{goimap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("failed to mark message %d as seen: %w", uid, err)
	}
	return nil
}

// Close logs out
func (s *session) Close() error {
	if err := s.c.Logout(); err != nil && err != client.ErrAlreadyLoggedOut {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}
