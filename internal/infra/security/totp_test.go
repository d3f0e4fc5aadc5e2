package security

import (
	"strings"
	"testing"
	"time"
)

// rfcTestSecret is the ASCII key "12345678901234567890" from RFC 6238
// Appendix B, base32-encoded.
const rfcTestSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateTOTPKnownVectors(t *testing.T) {
	// The RFC publishes 8-digit codes; the service uses the trailing 6.
	cases := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tc := range cases {
		got, err := GenerateTOTP(rfcTestSecret, time.Unix(tc.unix, 0).UTC())
		if err != nil {
			t.Fatalf("GenerateTOTP(%d) returned error: %v", tc.unix, err)
		}
		if got != tc.want {
			t.Fatalf("GenerateTOTP(%d) = %s, want %s", tc.unix, got, tc.want)
		}
	}
}

func TestGenerateTOTPMissingSecret(t *testing.T) {
	if _, err := GenerateTOTP("", time.Now()); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifyTOTPExactMatch(t *testing.T) {
	at := time.Unix(1111111111, 0).UTC()

	ok, err := VerifyTOTP(rfcTestSecret, "050471", at, 0)
	if err != nil {
		t.Fatalf("VerifyTOTP returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected code to verify at its own time step")
	}
}

func TestVerifyTOTPAcceptsSkewedSteps(t *testing.T) {
	at := time.Unix(1111111111, 0).UTC()

	// Code from two steps earlier should pass with skew 2 and fail with
	// skew 1.
	earlier, err := GenerateTOTP(rfcTestSecret, at.Add(-2*totpPeriod))
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}

	ok, err := VerifyTOTP(rfcTestSecret, earlier, at, 2)
	if err != nil {
		t.Fatalf("VerifyTOTP returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected code two steps back to verify with skew 2")
	}

	ok, err = VerifyTOTP(rfcTestSecret, earlier, at, 1)
	if err != nil {
		t.Fatalf("VerifyTOTP returned error: %v", err)
	}
	if ok {
		t.Fatal("expected code two steps back to fail with skew 1")
	}
}

func TestVerifyTOTPRejectsWrongLength(t *testing.T) {
	ok, err := VerifyTOTP(rfcTestSecret, "12345", time.Now(), 2)
	if err != nil {
		t.Fatalf("VerifyTOTP returned error: %v", err)
	}
	if ok {
		t.Fatal("expected five-digit code to be rejected")
	}
}

func TestGenerateTOTPSecretIsBase32(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}

	if _, err := b32NoPadding.DecodeString(secret); err != nil {
		t.Fatalf("secret is not valid base32: %v", err)
	}

	if strings.Contains(secret, "=") {
		t.Fatalf("secret should not be padded: %q", secret)
	}

	other, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}
	if secret == other {
		t.Fatal("two generated secrets should differ")
	}
}

func TestTOTPProvisioningURI(t *testing.T) {
	uri := TOTPProvisioningURI("Driplytics", "user@example.com", rfcTestSecret)

	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected scheme: %s", uri)
	}
	if !strings.Contains(uri, "secret="+rfcTestSecret) {
		t.Fatalf("uri missing secret: %s", uri)
	}
	if !strings.Contains(uri, "issuer=Driplytics") {
		t.Fatalf("uri missing issuer: %s", uri)
	}
	if !strings.Contains(uri, "digits=6") || !strings.Contains(uri, "period=30") {
		t.Fatalf("uri missing totp parameters: %s", uri)
	}
}
