package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	totpPeriod = 30 * time.Second
	totpDigits = 6

	// DefaultTOTPSkew tolerates two time steps of clock drift in either
	// direction (~60s at a 30s period).
	DefaultTOTPSkew = 2
)

// ErrMissingSecret is returned when the TOTP secret is empty.
var ErrMissingSecret = errors.New("totp secret is required")

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTOTPSecret returns a fresh base32-encoded shared secret.
func GenerateTOTPSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32NoPadding.EncodeToString(buf), nil
}

// GenerateTOTP computes the RFC 6238 code for the secret at the given time.
func GenerateTOTP(secret string, at time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	key, err := b32NoPadding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	counter := uint64(at.Unix()) / uint64(totpPeriod.Seconds())

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", totpDigits, value%mod), nil
}

// VerifyTOTP checks the submitted code against the secret, accepting codes
// from up to skew time steps before or after the reference time.
func VerifyTOTP(secret, code string, at time.Time, skew int) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	if len(code) != totpDigits {
		return false, nil
	}
	if skew < 0 {
		skew = 0
	}

	for offset := -skew; offset <= skew; offset++ {
		shifted := at.Add(time.Duration(offset) * totpPeriod)
		expected, err := GenerateTOTP(secret, shifted)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// TOTPProvisioningURI builds the otpauth:// payload an authenticator app can
// scan to enroll the secret.
func TOTPProvisioningURI(issuer, account, secret string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, account))

	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", fmt.Sprintf("%d", totpDigits))
	params.Set("period", fmt.Sprintf("%d", int(totpPeriod.Seconds())))

	return fmt.Sprintf("otpauth://totp/%s?%s", label, params.Encode())
}
