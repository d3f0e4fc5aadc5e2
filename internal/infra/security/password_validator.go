package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const defaultMinPasswordLength = 6

// WeakPasswordScoreCeiling marks the zxcvbn score at or below which a
// password is considered weak. Advisory only; the hard rule is length.
const WeakPasswordScoreCeiling = 1

// PasswordValidator enforces the minimum password rule and scores strength.
type PasswordValidator struct {
	minLength int
}

// DefaultPasswordValidator returns a validator with the service defaults.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(defaultMinPasswordLength)
}

// NewPasswordValidator builds a validator with the supplied minimum length.
func NewPasswordValidator(minLength int) *PasswordValidator {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	return &PasswordValidator{minLength: minLength}
}

// Validate returns an error when the password is shorter than the minimum.
func (v *PasswordValidator) Validate(password string) error {
	if utf8.RuneCountInString(password) < v.minLength {
		return fmt.Errorf("password must be at least %d characters", v.minLength)
	}
	return nil
}

// Score estimates password strength on the zxcvbn 0-4 scale. User inputs
// (username, email) penalize passwords derived from them.
func (v *PasswordValidator) Score(password string, userInputs ...string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
