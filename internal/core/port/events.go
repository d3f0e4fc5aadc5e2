package port

import (
	"context"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
)

// EventPublisher fans account lifecycle events out to downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishTwoFactorStatusChanged(ctx context.Context, event domain.TwoFactorStatusChangedEvent) error
}
