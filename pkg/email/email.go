// Package email delivers transactional mail over SMTP. Application
// code talks to the Sender interface; production wires the SMTP
// implementation and unconfigured environments get the no-op sender.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

var (
	// ErrNotConfigured means the sender has no usable SMTP settings.
	ErrNotConfigured = errors.New("email: smtp not configured")
	// ErrNoRecipient means the message has an empty To address.
	ErrNoRecipient = errors.New("email: no recipient")
	// ErrSendFailed wraps any failure in the SMTP exchange itself.
	ErrSendFailed = errors.New("email: send failed")
)

const defaultTimeout = 30 * time.Second

// Config holds the SMTP connection settings.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	FromName   string
	TLS        bool
	SkipVerify bool
	Timeout    time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) fromHeader() string {
	if c.FromName == "" {
		return c.From
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.From)
}

// Message is one HTML mail to one recipient. Transactional mail here
// is always templated, single-recipient HTML, so the type does not
// model anything wider.
type Message struct {
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender sends transactional mail.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	SendTemplate(ctx context.Context, to string, template Template, data any) error
	IsConfigured() bool
}

// SMTPSender delivers mail over a plain SMTP session, optionally
// upgraded with STARTTLS.
type SMTPSender struct {
	cfg       Config
	templates *TemplateEngine
}

// NewSMTPSender creates a sender from the given settings. A zero
// timeout falls back to 30 seconds.
func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPSender{cfg: cfg, templates: NewTemplateEngine()}
}

// IsConfigured reports whether the settings are complete enough to
// attempt delivery.
func (s *SMTPSender) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port > 0 && s.cfg.From != ""
}

// SendTemplate renders the named template and delivers the result.
func (s *SMTPSender) SendTemplate(ctx context.Context, to string, template Template, data any) error {
	subject, body, err := s.templates.Render(template, data)
	if err != nil {
		return fmt.Errorf("email: render %s: %w", template, err)
	}
	return s.Send(ctx, &Message{To: to, Subject: subject, HTML: body})
}

// Send delivers a single message. Errors from the SMTP exchange are
// wrapped in ErrSendFailed so callers can match without caring which
// step broke.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if msg.To == "" {
		return ErrNoRecipient
	}
	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, msg *Message) error {
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.addr(), err)
	}
	defer conn.Close()

	// net/smtp has no context support of its own, so the whole
	// exchange runs under one connection deadline.
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.TLS {
		tlsCfg := &tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.SkipVerify,
		}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.User != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from %s: %w", s.cfg.From, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(s.encode(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return client.Quit()
}

// encode serializes the message into an RFC 5322 envelope with CRLF
// line endings.
func (s *SMTPSender) encode(msg *Message) []byte {
	var buf bytes.Buffer
	header := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	header("From", s.cfg.fromHeader())
	header("To", msg.To)
	header("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)

	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	return buf.Bytes()
}

// NoOpSender accepts every message and delivers none of them. It is
// the fallback for environments without SMTP settings.
type NoOpSender struct{}

// NewNoOpSender creates a sender that drops all mail.
func NewNoOpSender() *NoOpSender { return &NoOpSender{} }

func (*NoOpSender) IsConfigured() bool { return true }

func (*NoOpSender) Send(context.Context, *Message) error { return nil }

func (*NoOpSender) SendTemplate(context.Context, string, Template, any) error { return nil }
