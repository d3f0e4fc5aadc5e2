package domain

import "time"

// ResetOTP is the short-lived single-use code mailed out for password resets.
// The storage layer expires records past ExpiresAt on its own; Used guards
// against replay inside the validity window.
type ResetOTP struct {
	Email     string
	Code      string
	Used      bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResetOTPTTL is the validity window for a freshly issued reset code.
const ResetOTPTTL = 10 * time.Minute
