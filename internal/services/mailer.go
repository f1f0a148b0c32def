package services

import (
	"fmt"
	"strings"

	"github.com/teamsync/backend/pkg/logger"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
}

// LogMailer writes the verification link to the log instead of sending it.
type LogMailer struct {
	FrontendURL string
}

func NewLogMailer(frontendURL string) *LogMailer {
	return &LogMailer{FrontendURL: strings.TrimRight(frontendURL, "/")}
}

func (m *LogMailer) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email/%s", m.FrontendURL, token)
}

func (m *LogMailer) SendVerification(to, token string) error {
	logger.Info().
		Str("to", to).
		Str("link", m.VerificationLink(token)).
		Msg("verification email")
	return nil
}

func (m *LogMailer) PasswordResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password/%s", m.FrontendURL, token)
}

func (m *LogMailer) SendPasswordReset(to, token string) error {
	logger.Info().
		Str("to", to).
		Str("link", m.PasswordResetLink(token)).
		Msg("password reset email")
	return nil
}
