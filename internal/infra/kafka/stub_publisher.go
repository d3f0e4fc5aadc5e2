package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"username":      event.Username,
		"email":         event.Email,
		"registered_at": event.RegisteredAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"changed_at": event.ChangedAt,
		"reason":     event.Reason,
		"metadata":   event.Metadata,
	}
	p.logEvent("user.password.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"user_id":      event.UserID,
		"request_id":   event.RequestID,
		"requested_at": event.RequestedAt,
		"masked_email": event.MaskedEmail,
		"expires_at":   event.ExpiresAt,
	}
	p.logEvent("user.password.reset_requested", event.UserID, event.RequestedAt, payload)
	return nil
}

// PublishTwoFactorStatusChanged logs user.two_factor.changed events.
func (p *StubPublisher) PublishTwoFactorStatusChanged(_ context.Context, event domain.TwoFactorStatusChangedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"enabled":    event.Enabled,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("user.two_factor.changed", event.UserID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
