package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

var (
	// ErrTwoFactorAlreadyEnabled indicates setup was attempted on an account
	// that already has an active second factor.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	// ErrTwoFactorNotConfigured indicates a verify or disable with no secret
	// on the account.
	ErrTwoFactorNotConfigured = errors.New("two-factor authentication is not configured")
)

// TwoFactorService manages TOTP enrollment: setup issues a secret, verify
// confirms possession and enables, disable clears.
type TwoFactorService struct {
	users     port.UserRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	issuer    string
	now       func() time.Time
	skew      int
}

// NewTwoFactorService constructs a two-factor service. The issuer names the
// service inside authenticator apps.
func NewTwoFactorService(users port.UserRepository, publisher port.EventPublisher, issuer string, log *zap.Logger) *TwoFactorService {
	if issuer == "" {
		issuer = "Driplytics"
	}
	return &TwoFactorService{
		users:     users,
		publisher: publisher,
		logger:    log,
		issuer:    issuer,
		now:       time.Now,
		skew:      security.DefaultTOTPSkew,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *TwoFactorService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// TwoFactorSetup carries the enrollment material for the authenticator app.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// Setup issues a fresh secret and stores it in the pending state. Repeating
// setup before verification replaces the pending secret.
func (s *TwoFactorService) Setup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorState() == domain.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret, err := security.GenerateTOTPSecret()
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.users.SetTOTPSecret(ctx, user.ID, secret); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	return &TwoFactorSetup{
		Secret:          secret,
		ProvisioningURI: security.TOTPProvisioningURI(s.issuer, user.Email, secret),
	}, nil
}

// Verify confirms the user's authenticator produces valid codes and flips the
// account to enabled.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	switch user.TwoFactorState() {
	case domain.TwoFactorEnabled:
		return ErrTwoFactorAlreadyEnabled
	case domain.TwoFactorDisabled:
		return ErrTwoFactorNotConfigured
	}

	ok, err := security.VerifyTOTP(*user.TOTPSecret, code, s.now(), s.skew)
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		return ErrInvalidTwoFactorCode
	}

	if err := s.users.EnableTwoFactor(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("enable two factor: %w", err)
	}

	s.publishStatusChanged(ctx, user.ID, true)
	return nil
}

// Disable removes the second factor. The password is always checked; a TOTP
// code is additionally required only while the factor is enabled. Disabling an
// already-disabled account is a no-op success.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password, code string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if user.TwoFactorState() == domain.TwoFactorEnabled {
		ok, err := security.VerifyTOTP(*user.TOTPSecret, code, s.now(), s.skew)
		if err != nil {
			return fmt.Errorf("verify totp: %w", err)
		}
		if !ok {
			return ErrInvalidTwoFactorCode
		}
	}

	if err := s.users.ClearTwoFactor(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("clear two factor: %w", err)
	}

	s.publishStatusChanged(ctx, user.ID, false)
	return nil
}

// Status reports the account's current enrollment state.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (domain.TwoFactorStatus, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.TwoFactorState(), nil
}

func (s *TwoFactorService) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *TwoFactorService) publishStatusChanged(ctx context.Context, userID string, enabled bool) {
	if s.publisher == nil {
		return
	}

	event := domain.TwoFactorStatusChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Enabled:   enabled,
		ChangedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishTwoFactorStatusChanged(ctx, event); err != nil {
		s.logger.Warn("publish two factor status event failed", zap.Error(err))
	}
}
