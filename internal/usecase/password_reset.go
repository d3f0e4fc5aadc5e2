package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/logger"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

const resetCodeLength = 6

var (
	// ErrOTPInvalidOrExpired covers missing, mismatched, consumed, and expired
	// codes alike. Callers must not distinguish further.
	ErrOTPInvalidOrExpired = errors.New("code is invalid or expired")
	// ErrResetTokenInvalid indicates the reset token failed verification,
	// expired, or carries the wrong purpose.
	ErrResetTokenInvalid = errors.New("reset token is invalid or expired")
	// ErrMailDelivery indicates the reset code could not be dispatched; the
	// issued code is rolled back.
	ErrMailDelivery = errors.New("could not deliver reset code")
	// ErrTooManyResetRequests indicates the per-email sliding window is full.
	ErrTooManyResetRequests = errors.New("too many reset requests")
	// ErrUserNotFound indicates the account vanished between token issuance
	// and password update.
	ErrUserNotFound = errors.New("user not found")
)

// PasswordResetService drives the forgot-password flow: OTP issuance, OTP
// verification, and the final password update.
type PasswordResetService struct {
	users             port.UserRepository
	otps              port.OTPStore
	mailer            port.OTPMailer
	tokens            *security.JWTManager
	rateLimits        port.RateLimitStore
	publisher         port.EventPublisher
	passwordValidator *security.PasswordValidator
	logger            *zap.Logger

	now         func() time.Time
	otpTTL      time.Duration
	window      time.Duration
	maxRequests int
}

// PasswordResetOptions configures the reset service rate limiting.
type PasswordResetOptions struct {
	Window      time.Duration
	MaxRequests int
}

// NewPasswordResetService constructs a password reset service.
func NewPasswordResetService(
	users port.UserRepository,
	otps port.OTPStore,
	mailer port.OTPMailer,
	tokens *security.JWTManager,
	rateLimits port.RateLimitStore,
	publisher port.EventPublisher,
	validator *security.PasswordValidator,
	log *zap.Logger,
	opts PasswordResetOptions,
) *PasswordResetService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	window := opts.Window
	if window <= 0 {
		window = time.Minute
	}
	maxRequests := opts.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 3
	}

	return &PasswordResetService{
		users:             users,
		otps:              otps,
		mailer:            mailer,
		tokens:            tokens,
		rateLimits:        rateLimits,
		publisher:         publisher,
		passwordValidator: validator,
		logger:            log,
		now:               time.Now,
		otpTTL:            domain.ResetOTPTTL,
		window:            window,
		maxRequests:       maxRequests,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithOTPTTL overrides the code validity window, used in tests.
func (s *PasswordResetService) WithOTPTTL(ttl time.Duration) {
	if ttl > 0 {
		s.otpTTL = ttl
	}
}

// RequestReset issues and mails a fresh code. Unknown emails return nil so the
// endpoint cannot be used to enumerate accounts; delivery failures are the one
// exception, since the caller would otherwise wait for a code that never
// arrives.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if err := s.checkRateLimit(ctx, email); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}

	code, err := security.GenerateNumericCode(resetCodeLength)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	record, err := s.otps.Replace(ctx, email, code, s.otpTTL)
	if err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.mailer.SendResetOTP(ctx, email, code, record.ExpiresAt); err != nil {
		if delErr := s.otps.Delete(ctx, email); delErr != nil && !errors.Is(delErr, repository.ErrNotFound) {
			s.logger.Warn("rollback of undelivered reset code failed", zap.Error(delErr))
		}
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	if s.publisher != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			RequestID:   uuid.NewString(),
			RequestedAt: record.CreatedAt,
			MaskedEmail: logger.MaskEmail(email),
			ExpiresAt:   record.ExpiresAt,
		}
		if err := s.publisher.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("publish reset requested event failed", zap.Error(err))
		}
	}

	return nil
}

// VerifyOTP consumes a code and returns a short-lived reset token.
func (s *PasswordResetService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return "", ErrOTPInvalidOrExpired
	}

	record, err := s.otps.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrOTPInvalidOrExpired
		}
		return "", fmt.Errorf("load reset code: %w", err)
	}

	if record.Used {
		return "", ErrOTPInvalidOrExpired
	}

	if !s.now().UTC().Before(record.ExpiresAt) {
		if delErr := s.otps.Delete(ctx, email); delErr != nil && !errors.Is(delErr, repository.ErrNotFound) {
			s.logger.Warn("delete expired reset code failed", zap.Error(delErr))
		}
		return "", ErrOTPInvalidOrExpired
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return "", ErrOTPInvalidOrExpired
	}

	if err := s.otps.MarkUsed(ctx, email); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("mark reset code used: %w", err)
	}

	token, err := s.tokens.SignResetToken(email)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}

	return token, nil
}

// ResetPassword finalizes the flow using the token from VerifyOTP.
func (s *PasswordResetService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.ParseResetToken(resetToken)
	if err != nil {
		return ErrResetTokenInvalid
	}

	if err := s.passwordValidator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash, "argon2id", now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.otps.Delete(ctx, claims.Email); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("cleanup of consumed reset code failed", zap.Error(err))
	}

	s.publishPasswordChanged(ctx, user.ID, now, "reset")
	return nil
}

// ChangePassword updates the password for a logged-in user.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.passwordValidator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash, "argon2id", now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChanged(ctx, user.ID, now, "change")
	return nil
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID string, at time.Time, reason string) {
	if s.publisher == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: at,
		Reason:    reason,
	}
	if err := s.publisher.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Error(err))
	}
}

func (s *PasswordResetService) checkRateLimit(ctx context.Context, email string) error {
	if s.rateLimits == nil {
		return nil
	}

	now := s.now().UTC()
	identifier := "reset:" + email

	if err := s.rateLimits.TrimWindow(ctx, identifier, s.window, now); err != nil {
		s.logger.Warn("trim reset rate limit window failed", zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, identifier, s.window, now)
	if err != nil {
		s.logger.Warn("count reset attempts failed", zap.Error(err))
		return nil
	}
	if count >= s.maxRequests {
		return ErrTooManyResetRequests
	}

	if err := s.rateLimits.RecordAttempt(ctx, identifier, now); err != nil {
		s.logger.Warn("record reset attempt failed", zap.Error(err))
	}

	return nil
}
