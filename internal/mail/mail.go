// Package mail delivers plain-text notifications such as password reset
// tokens.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// NewSMTPSender returns a sender for cfg. Authentication is used only when a
// username is configured.
func NewSMTPSender(cfg Config) *SMTPSender {
	s := &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

// Send delivers one message. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("send mail: header contains line break")
	}
	msg := buildMessage(s.from, to, subject, body, s.now())
	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", s.addr, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes messages to the logger instead of sending them. Bodies
// are logged at debug level only.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, to, subject, body string) error {
	l.logger.InfoContext(ctx, "mail queued", slog.String("to", to), slog.String("subject", subject))
	l.logger.DebugContext(ctx, "mail body", slog.String("to", to), slog.String("body", body))
	return nil
}
