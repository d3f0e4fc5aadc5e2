package port

import (
	"context"
	"time"
)

// OTPMailer delivers password reset codes out of band.
type OTPMailer interface {
	SendResetOTP(ctx context.Context, email, code string, expiresAt time.Time) error
}
