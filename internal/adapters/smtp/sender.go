package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/mikey/llm-answer-bot/internal/autoreply"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap"
)

// TLS modes
const (
	TLSAuto     = "auto"
	TLSImplicit = "tls"
	TLSStart    = "starttls"
	TLSNone     = "none"
)

// Sender delivers replies through an SMTP submission server
type Sender struct {
	cfg       config.SMTPConfig
	username  string
	password  string
	domain    string
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewSender creates a new SMTP sender
func NewSender(cfg config.SMTPConfig, username, password, domain string, logger *zap.Logger) *Sender {
	return &Sender{
		cfg:       cfg,
		username:  username,
		password:  password,
		domain:    domain,
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
		logger:    logger,
	}
}

// Send composes the reply and submits it
func (s *Sender) Send(ctx context.Context, reply *core.OutgoingReply) error {
	data, err := ComposeMessage(reply, s.domain, time.Now())
	if err != nil {
		return err
	}
	return s.submit(ctx, autoreply.AddressOf(reply.From), autoreply.AddressOf(reply.To), data)
}

func (s *Sender) submit(ctx context.Context, sender, recipient string, data []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	c, err := s.dial(ctx, addr, s.tlsMode())
	if err != nil {
		return err
	}
	defer c.Close()

	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
				return fmt.Errorf("SMTP authentication failed: %w", err)
			}
		} else {
			s.logger.Warn("SMTP server does not advertise AUTH, sending unauthenticated",
				zap.String("server", addr))
		}
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message is already accepted at this point
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}

	s.logger.Debug("Reply submitted",
		zap.String("to", recipient),
		zap.Int("size", len(data)))
	return nil
}

// dial returns a client that has completed EHLO, over TLS unless the mode or the server rules it out
func (s *Sender) dial(ctx context.Context, addr, mode string) (*gosmtp.Client, error) {
	conn, err := s.connect(ctx, addr, mode == TLSImplicit)
	if err != nil {
		return nil, err
	}

	switch mode {
	case TLSStart:
		return s.startTLS(conn)
	case TLSAuto:
		c := gosmtp.NewClient(conn)
		if err := c.Hello(s.hostname()); err != nil {
			c.Close()
			return nil, fmt.Errorf("EHLO failed: %w", err)
		}
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return c, nil
		}
		// the client cannot upgrade a session it already greeted, so start over
		if err := c.Quit(); err != nil {
			c.Close()
		}
		if conn, err = s.connect(ctx, addr, false); err != nil {
			return nil, err
		}
		return s.startTLS(conn)
	default:
		c := gosmtp.NewClient(conn)
		if err := c.Hello(s.hostname()); err != nil {
			c.Close()
			return nil, fmt.Errorf("EHLO failed: %w", err)
		}
		return c, nil
	}
}

func (s *Sender) startTLS(conn net.Conn) (*gosmtp.Client, error) {
	c, err := gosmtp.NewClientStartTLS(conn, s.tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	if err := c.Hello(s.hostname()); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, nil
}

func (s *Sender) connect(ctx context.Context, addr string, implicitTLS bool) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	var conn net.Conn
	var err error
	if implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: s.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}
	return conn, nil
}

func (s *Sender) hostname() string {
	if s.domain == "" {
		return "localhost"
	}
	return s.domain
}

func (s *Sender) tlsMode() string {
	if s.cfg.TLS != TLSAuto && s.cfg.TLS != "" {
		return s.cfg.TLS
	}
	if s.cfg.Port == 465 {
		return TLSImplicit
	}
	return TLSAuto
}
