package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

func TestRegisterIssuesSessionAndPublishes(t *testing.T) {
	users := &mockUserRepository{}
	publisher := &mockEventPublisher{}
	tokens := newTestTokens(t)

	service := NewAuthService(users, tokens, nil, publisher, zaptest.NewLogger(t))

	result, err := service.Register(context.Background(), "kamal", "Kamal@Example.com", "sneakerhead42")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if users.createCalls != 1 {
		t.Fatalf("expected one Create call, got %d", users.createCalls)
	}
	if users.created.Email != "kamal@example.com" {
		t.Fatalf("expected normalized email, got %s", users.created.Email)
	}
	if users.created.PasswordHash == "" || users.created.PasswordHash == "sneakerhead42" {
		t.Fatal("expected password to be hashed before storage")
	}

	claims, err := tokens.ParseSessionToken(result.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != users.created.ID {
		t.Fatalf("token user id %s does not match created user %s", claims.UserID, users.created.ID)
	}

	if result.User.PasswordHash != "" {
		t.Fatal("returned user must not carry the password hash")
	}

	if len(publisher.registered) != 1 {
		t.Fatalf("expected one registration event, got %d", len(publisher.registered))
	}
	if publisher.registered[0].Email != "kamal@example.com" {
		t.Fatalf("unexpected event email: %s", publisher.registered[0].Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	existing := domain.User{ID: "user-1", Email: "kamal@example.com"}
	users := &mockUserRepository{
		existsResult: true,
		byEmail:      map[string]domain.User{"kamal@example.com": existing},
	}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	_, err := service.Register(context.Background(), "someone", "kamal@example.com", "sneakerhead42")

	var dup *repository.DuplicateFieldError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateFieldError, got %v", err)
	}
	if dup.Field != "email" {
		t.Fatalf("expected duplicate field email, got %s", dup.Field)
	}
	if users.createCalls != 0 {
		t.Fatal("Create must not run for a duplicate account")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := &mockUserRepository{existsResult: true}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	_, err := service.Register(context.Background(), "kamal", "fresh@example.com", "sneakerhead42")

	var dup *repository.DuplicateFieldError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateFieldError, got %v", err)
	}
	if dup.Field != "username" {
		t.Fatalf("expected duplicate field username, got %s", dup.Field)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	service := NewAuthService(&mockUserRepository{}, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	_, err := service.Register(context.Background(), "kamal", "kamal@example.com", "12345")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	service := NewAuthService(&mockUserRepository{}, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	if _, err := service.Register(context.Background(), "kamal", "not-an-email", "sneakerhead42"); err == nil {
		t.Fatal("expected error for malformed email")
	}
}

func TestLoginSuccess(t *testing.T) {
	hash := mustHashPassword(t, "sneakerhead42")
	user := domain.User{ID: "user-1", Username: "kamal", Email: "kamal@example.com", PasswordHash: hash}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}
	tokens := newTestTokens(t)

	service := NewAuthService(users, tokens, nil, nil, zaptest.NewLogger(t))

	result, err := service.Login(context.Background(), "Kamal@Example.com ", "sneakerhead42")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	claims, err := tokens.ParseSessionToken(result.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected token subject: %s", claims.UserID)
	}
}

func TestLoginUniformErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	hash := mustHashPassword(t, "sneakerhead42")
	user := domain.User{ID: "user-1", Email: "kamal@example.com", PasswordHash: hash}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	_, unknownErr := service.Login(context.Background(), "ghost@example.com", "whatever1")
	_, wrongErr := service.Login(context.Background(), "kamal@example.com", "not-the-password")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("unknown email and wrong password must be indistinguishable")
	}
}

func TestLoginChallengesWhenTwoFactorEnabled(t *testing.T) {
	hash := mustHashPassword(t, "sneakerhead42")
	secret := rfc6238Secret
	user := domain.User{
		ID:               "user-1",
		Email:            "kamal@example.com",
		PasswordHash:     hash,
		TOTPSecret:       &secret,
		TwoFactorEnabled: true,
	}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	if _, err := service.Login(context.Background(), "kamal@example.com", "sneakerhead42"); !errors.Is(err, ErrTwoFactorRequired) {
		t.Fatalf("expected ErrTwoFactorRequired, got %v", err)
	}
}

// rfc6238Secret is the base32 encoding of the RFC 6238 Appendix B test key.
const rfc6238Secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestValidateTwoFactorLoginSuccess(t *testing.T) {
	secret := rfc6238Secret
	user := domain.User{
		ID:               "user-1",
		Email:            "kamal@example.com",
		TOTPSecret:       &secret,
		TwoFactorEnabled: true,
	}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}
	tokens := newTestTokens(t)

	service := NewAuthService(users, tokens, nil, nil, zaptest.NewLogger(t))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return at })

	code, err := security.GenerateTOTP(secret, at)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}

	result, err := service.ValidateTwoFactorLogin(context.Background(), "kamal@example.com", code)
	if err != nil {
		t.Fatalf("ValidateTwoFactorLogin returned error: %v", err)
	}

	if _, err := tokens.ParseSessionToken(result.Token); err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
}

func TestValidateTwoFactorLoginRejectsBadCode(t *testing.T) {
	secret := rfc6238Secret
	user := domain.User{
		ID:               "user-1",
		Email:            "kamal@example.com",
		TOTPSecret:       &secret,
		TwoFactorEnabled: true,
	}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return at })

	wrong := wrongTOTPCode(t, secret, at, security.DefaultTOTPSkew)

	if _, err := service.ValidateTwoFactorLogin(context.Background(), "kamal@example.com", wrong); !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected ErrInvalidTwoFactorCode, got %v", err)
	}
}

// wrongTOTPCode returns a six-digit code that does not match any code inside
// the accepted skew window.
func wrongTOTPCode(t *testing.T, secret string, at time.Time, skew int) string {
	t.Helper()

	window := make(map[string]struct{}, 2*skew+1)
	for offset := -skew; offset <= skew; offset++ {
		code, err := security.GenerateTOTP(secret, at.Add(time.Duration(offset)*30*time.Second))
		if err != nil {
			t.Fatalf("GenerateTOTP returned error: %v", err)
		}
		window[code] = struct{}{}
	}

	for _, candidate := range []string{"000000", "111111", "222222", "333333", "444444", "555555"} {
		if _, ok := window[candidate]; !ok {
			return candidate
		}
	}

	t.Fatal("no candidate code outside the skew window")
	return ""
}

func TestValidateTwoFactorLoginWithoutEnrollment(t *testing.T) {
	user := domain.User{ID: "user-1", Email: "kamal@example.com"}
	users := &mockUserRepository{byEmail: map[string]domain.User{"kamal@example.com": user}}

	service := NewAuthService(users, newTestTokens(t), nil, nil, zaptest.NewLogger(t))

	if _, err := service.ValidateTwoFactorLogin(context.Background(), "kamal@example.com", "123456"); !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("expected ErrTwoFactorNotEnabled for unenrolled account, got %v", err)
	}

	if _, err := service.ValidateTwoFactorLogin(context.Background(), "ghost@example.com", "123456"); !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("expected ErrTwoFactorNotEnabled for unknown email, got %v", err)
	}
}
