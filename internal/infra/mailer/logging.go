package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/logger"
)

// LoggingMailer records reset codes to the log instead of delivering them.
// Selected when no SMTP host is configured.
type LoggingMailer struct {
	logger *zap.Logger
}

// NewLoggingMailer constructs a development-friendly mailer.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	return &LoggingMailer{logger: log}
}

// SendResetOTP logs the code instead of mailing it. The code itself is logged
// so a developer without an inbox can finish the flow.
func (m *LoggingMailer) SendResetOTP(_ context.Context, email, code string, expiresAt time.Time) error {
	m.logger.Info("reset code issued (logging mailer)",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt.UTC()),
	)
	return nil
}

var _ port.OTPMailer = (*LoggingMailer)(nil)
