package domain

import "time"

// UserRegisteredEvent is published after a successful registration.
type UserRegisteredEvent struct {
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	RegisteredAt time.Time      `json:"registered_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PasswordChangedEvent is published after a password change or reset.
type PasswordChangedEvent struct {
	EventID   string         `json:"event_id"`
	UserID    string         `json:"user_id"`
	ChangedAt time.Time      `json:"changed_at"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PasswordResetRequestedEvent is published when a reset OTP is issued.
type PasswordResetRequestedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
	MaskedEmail string    `json:"masked_email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TwoFactorStatusChangedEvent is published when TOTP is enabled or disabled.
type TwoFactorStatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Enabled   bool      `json:"enabled"`
	ChangedAt time.Time `json:"changed_at"`
}
