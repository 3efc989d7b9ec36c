package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// SMTPSender is the outbound mail-transport boundary wrapper: it connects to
// the configured relay with STARTTLS and sends one HTML message per call.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

var _ ports.MailSender = (*SMTPSender)(nil)

// NewSMTPSender builds a sender from configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
	}
}

// Send delivers one HTML message to one recipient.
func (s *SMTPSender) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	if s.host == "" || s.username == "" {
		return fmt.Errorf("smtp sender misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.from, recipient, subject, htmlBody)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
