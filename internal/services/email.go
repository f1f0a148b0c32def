package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/pkg/logger"
)

// NewMailer returns an SMTP mailer when mail is enabled and a host is set,
// otherwise a mailer that only logs the link.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.Mail.Enabled && cfg.Mail.Host != "" {
		return NewSMTPMailer(&cfg.Mail, cfg.FrontendURL)
	}
	return NewLogMailer(cfg.FrontendURL)
}

// SMTPMailer sends account emails through an SMTP relay.
type SMTPMailer struct {
	cfg   config.MailConfig
	links *LogMailer
	send  func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg *config.MailConfig, frontendURL string) *SMTPMailer {
	m := &SMTPMailer{cfg: *cfg, links: NewLogMailer(frontendURL)}
	if m.cfg.Port == 0 {
		m.cfg.Port = 587
	}
	if m.cfg.UseTLS {
		m.send = m.sendTLS
	} else {
		m.send = smtp.SendMail
	}
	return m
}

func (m *SMTPMailer) SendVerification(to, token string) error {
	link := m.links.VerificationLink(token)
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">`+
		`<h2>Confirm your email</h2>`+
		`<p>Open the link below to activate your account. It expires in 24 hours.</p>`+
		`<p><a href="%s">%s</a></p>`+
		`</body></html>`, link, link)
	return m.sendMail([]string{to}, "Verify your email address", body)
}

func (m *SMTPMailer) SendPasswordReset(to, token string) error {
	link := m.links.PasswordResetLink(token)
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">`+
		`<h2>Reset your password</h2>`+
		`<p>Open the link below to choose a new password. It expires in one hour.</p>`+
		`<p><a href="%s">%s</a></p>`+
		`<p>If you did not ask for this, ignore this email.</p>`+
		`</body></html>`, link, link)
	return m.sendMail([]string{to}, "Reset your password", body)
}

func (m *SMTPMailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func (m *SMTPMailer) buildMessage(to []string, subject, body string) string {
	headers := map[string]string{
		"From":         m.from(),
		"To":           strings.Join(to, ","),
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var message strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&message, "%s: %s\r\n", k, headers[k])
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}

func (m *SMTPMailer) sendMail(to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(addr, auth, m.from(), to, []byte(m.buildMessage(to, subject, body))); err != nil {
		logger.Warn().Err(err).Strs("to", to).Msg("send email failed")
		return fmt.Errorf("send email: %w", err)
	}
	logger.Info().Strs("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// sendTLS is smtp.SendMail over an implicit TLS connection.
func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
