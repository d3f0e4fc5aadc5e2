package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

const (
	// ResetTokenPurpose tags tokens issued after OTP verification; a token
	// without this purpose must never reset a password.
	ResetTokenPurpose = "password_reset"

	defaultSessionTokenTTL = 7 * 24 * time.Hour
	defaultResetTokenTTL   = 15 * time.Minute
)

var (
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrTokenInvalid covers signature mismatch, structural corruption, and
	// claim validation failures. Callers must not distinguish further.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrTokenExpired indicates the token verified but is past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrWrongPurpose indicates a purpose-scoped token was presented for a
	// different purpose.
	ErrWrongPurpose = errors.New("jwt: wrong token purpose")
)

// SessionClaims carry the identity for a logged-in user.
type SessionClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// ResetClaims authorize a single follow-up action scoped by Purpose.
type ResetClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies the service's bearer tokens.
type JWTManager struct {
	provider   KeyProvider
	kid        string
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// JWTManagerOptions configures a JWTManager.
type JWTManagerOptions struct {
	Provider   KeyProvider
	KID        string
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// NewJWTManager constructs a JWTManager for the supplied key provider.
func NewJWTManager(opts JWTManagerOptions) (*JWTManager, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("jwt: key provider is required")
	}
	kid := strings.TrimSpace(opts.KID)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	sessionTTL := opts.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTokenTTL
	}
	resetTTL := opts.ResetTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTokenTTL
	}

	return &JWTManager{
		provider:   opts.Provider,
		kid:        kid,
		issuer:     strings.TrimSpace(opts.Issuer),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (m *JWTManager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.now = clock
	}
}

// SessionTTL reports the configured session token lifetime.
func (m *JWTManager) SessionTTL() time.Duration {
	return m.sessionTTL
}

// SignSessionToken issues a session token for the given identity.
func (m *JWTManager) SignSessionToken(userID, email string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("jwt: user id is required")
	}

	now := m.now().UTC()
	claims := &SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.sessionTTL)),
			ID:        uuid.NewString(),
		},
	}

	return m.sign(claims)
}

// SignResetToken issues a short-lived purpose-scoped password reset token.
func (m *JWTManager) SignResetToken(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("jwt: email is required")
	}

	now := m.now().UTC()
	claims := &ResetClaims{
		Email:   email,
		Purpose: ResetTokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.resetTTL)),
			ID:        uuid.NewString(),
		},
	}

	return m.sign(claims)
}

// ParseSessionToken verifies a session token and returns its claims.
func (m *JWTManager) ParseSessionToken(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseResetToken verifies a reset token and enforces its purpose tag.
func (m *JWTManager) ParseResetToken(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := m.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != ResetTokenPurpose {
		return nil, ErrWrongPurpose
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *JWTManager) sign(claims jwt.Claims) (string, error) {
	signingKey, err := m.provider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}

		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, ErrKeyIDMissing
		}

		return m.provider.GetVerificationKey(kid)
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}
