package port

import (
	"context"
	"time"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
)

// OTPStore holds short-lived password reset codes keyed by email. The backing
// store is expected to purge records past their TTL on its own.
type OTPStore interface {
	// Replace deletes any prior code for the email and stores a fresh one.
	// The two steps are separate commands; see the concurrency notes in
	// DESIGN.md.
	Replace(ctx context.Context, email, code string, ttl time.Duration) (*domain.ResetOTP, error)
	// Get returns the stored record regardless of its used flag.
	Get(ctx context.Context, email string) (*domain.ResetOTP, error)
	// MarkUsed flags the record as consumed, enforcing single use.
	MarkUsed(ctx context.Context, email string) error
	Delete(ctx context.Context, email string) error
}
