package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

const (
	defaultOTPPrefix = "driplytics:reset-otp"

	fieldCode      = "code"
	fieldUsed      = "used"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// OTPStore persists password reset codes in Redis hashes. The key TTL is the
// passive expiry mechanism; records past their window simply vanish.
type OTPStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewOTPStore constructs an OTP store with the provided Redis client and key
// prefix.
func NewOTPStore(client *red.Client, keyPrefix string) *OTPStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultOTPPrefix
	}

	return &OTPStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Replace deletes any prior code for the email and stores a fresh one. The
// delete and the write are separate commands, so a concurrent request can
// observe the gap; the last writer wins.
func (s *OTPStore) Replace(ctx context.Context, email, code string, ttl time.Duration) (*domain.ResetOTP, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	switch {
	case email == "":
		return nil, errors.New("email is required")
	case code == "":
		return nil, errors.New("code is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	key := s.key(email)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("redis delete prior otp: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      code,
		fieldUsed:      "0",
		fieldCreatedAt: strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store otp: %w", err)
	}

	return &domain.ResetOTP{
		Email:     email,
		Code:      code,
		Used:      false,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

// Get returns the stored record for the email regardless of its used flag.
func (s *OTPStore) Get(ctx context.Context, email string) (*domain.ResetOTP, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.ResetOTP{
		Email:     email,
		Code:      code,
		Used:      values[fieldUsed] == "1",
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}, nil
}

// MarkUsed flags the record as consumed. The stored expiry is re-applied in
// the same pipeline as the write, so a key whose TTL fires mid-call cannot be
// resurrected as an expiry-less hash.
func (s *OTPStore) MarkUsed(ctx context.Context, email string) error {
	record, err := s.Get(ctx, email)
	if err != nil {
		return err
	}

	key := s.key(record.Email)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fieldUsed, "1")
	pipe.ExpireAt(ctx, key, record.ExpiresAt)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark otp used: %w", err)
	}

	return nil
}

// Delete removes the record for the email.
func (s *OTPStore) Delete(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return errors.New("email is required")
	}

	deleted, err := s.client.Del(ctx, s.key(email)).Result()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (s *OTPStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *OTPStore) key(email string) string {
	return fmt.Sprintf("%s:%s", s.prefix, email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.OTPStore = (*OTPStore)(nil)
