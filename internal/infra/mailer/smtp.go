package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/config"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/logger"
)

// SMTPMailer delivers reset codes over plain SMTP with optional AUTH.
type SMTPMailer struct {
	cfg    config.SMTPSettings
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs a mailer from SMTP settings.
func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: log,
		send:   smtp.SendMail,
	}
}

// SendResetOTP mails the reset code. The send runs in a goroutine bounded by
// the caller's context so a slow SMTP server cannot hold the request open.
func (m *SMTPMailer) SendResetOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("mailer: recipient is required")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := buildResetMessage(m.cfg.From, email, code, expiresAt)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.send(addr, auth, m.cfg.From, []string{email}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			m.logger.Error("reset code delivery failed",
				zap.String("email", logger.MaskEmail(email)),
				zap.Error(err),
			)
			return fmt.Errorf("mailer: send reset code: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("mailer: send reset code: %w", ctx.Err())
	}

	m.logger.Info("reset code delivered",
		zap.String("email", logger.MaskEmail(email)),
		zap.Time("expires_at", expiresAt.UTC()),
	)

	return nil
}

func buildResetMessage(from, to, code string, expiresAt time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Driplytics password reset code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your password reset code is: %s\r\n\r\n", code)
	fmt.Fprintf(&b, "It expires at %s. If you did not request a reset, ignore this message.\r\n",
		expiresAt.UTC().Format(time.RFC1123))
	return []byte(b.String())
}

var _ port.OTPMailer = (*SMTPMailer)(nil)
