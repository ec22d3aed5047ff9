package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/projectplus/apiserver/config"
	"github.com/rs/zerolog"
)

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends HTML email through an SMTP relay. Without credentials it
// only logs the message, which keeps local runs usable.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger zerolog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		m.logger.Warn().
			Str("to", email.To).
			Str("subject", email.Subject).
			Msg("SMTP credentials not configured, email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	msg := m.message(email)

	if !m.cfg.UseTLS {
		// SendMail upgrades with STARTTLS when the server offers it.
		if err := smtp.SendMail(addr, auth, m.from(), []string{email.To}, msg); err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication: %w", err)
	}
	if err := client.Mail(m.from()); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(email.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}
	return client.Quit()
}

func (m *SMTPMailer) from() string {
	if m.cfg.FromEmail != "" {
		return m.cfg.FromEmail
	}
	return m.cfg.Username
}

func (m *SMTPMailer) message(email Email) []byte {
	var b strings.Builder
	from := m.from()
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), from)
	}
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", email.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.HTML)
	return []byte(b.String())
}
