package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/logger"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords
	// alike so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrPasswordPolicyViolation indicates the password does not satisfy the
	// minimum requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet requirements")
	// ErrInvalidTwoFactorCode indicates the supplied TOTP code did not verify.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrTwoFactorRequired indicates credentials were valid but the account
	// needs a TOTP code to finish logging in.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorNotEnabled indicates the challenge endpoint was called for
	// an account without an active second factor.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication is not enabled")
)

// AuthService handles registration and login.
type AuthService struct {
	users             port.UserRepository
	tokens            *security.JWTManager
	passwordValidator *security.PasswordValidator
	publisher         port.EventPublisher
	logger            *zap.Logger
	now               func() time.Time
	totpSkew          int
}

// NewAuthService constructs an auth service.
func NewAuthService(users port.UserRepository, tokens *security.JWTManager, validator *security.PasswordValidator, publisher port.EventPublisher, log *zap.Logger) *AuthService {
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &AuthService{
		users:             users,
		tokens:            tokens,
		passwordValidator: validator,
		publisher:         publisher,
		logger:            log,
		now:               time.Now,
		totpSkew:          security.DefaultTOTPSkew,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// AuthResult carries the outcome of a registration or completed login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// Register creates an account and logs the new user straight in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("email is invalid")
	}
	if err := s.passwordValidator.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	// Fast-path duplicate check. The unique constraints remain the backstop
	// for concurrent registrations.
	if exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email); err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	} else if exists {
		field := "username"
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			field = "email"
		}
		return nil, &repository.DuplicateFieldError{Field: field}
	}

	if score := s.passwordValidator.Score(password, username, email); score <= security.WeakPasswordScoreCeiling {
		s.logger.Info("weak password accepted",
			zap.String("email", logger.MaskEmail(email)),
			zap.Int("score", score),
		)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		PasswordAlgo: "argon2id",
		CreatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.SignSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if s.publisher != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Username:     user.Username,
			Email:        user.Email,
			RegisteredAt: now,
		}
		if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered event failed", zap.Error(err))
		}
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: now.Add(s.tokens.SessionTTL()),
		User:      sanitizeUser(user),
	}, nil
}

// Login verifies credentials. Accounts with two-factor enabled get
// ErrTwoFactorRequired instead of a token; the client finishes through
// ValidateTwoFactorLogin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorState() == domain.TwoFactorEnabled {
		return nil, ErrTwoFactorRequired
	}

	return s.issueSession(*user)
}

// ValidateTwoFactorLogin completes the login challenge for an account with an
// active second factor. It takes no password: the client already passed the
// credential check in Login and holds only the challenge.
func (s *AuthService) ValidateTwoFactorLogin(ctx context.Context, email, code string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, ErrTwoFactorNotEnabled
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTwoFactorNotEnabled
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if user.TwoFactorState() != domain.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := security.VerifyTOTP(*user.TOTPSecret, code, s.now(), s.totpSkew)
	if err != nil {
		return nil, fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTwoFactorCode
	}

	return s.issueSession(*user)
}

// ParseSessionToken validates a bearer token and returns its claims.
func (s *AuthService) ParseSessionToken(token string) (*security.SessionClaims, error) {
	return s.tokens.ParseSessionToken(token)
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) issueSession(user domain.User) (*AuthResult, error) {
	token, err := s.tokens.SignSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokens.SessionTTL()),
		User:      sanitizeUser(user),
	}, nil
}

// sanitizeUser strips secrets before the user leaves the usecase layer.
func sanitizeUser(user domain.User) domain.User {
	user.PasswordHash = ""
	user.PasswordAlgo = ""
	user.TOTPSecret = nil
	return user
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
