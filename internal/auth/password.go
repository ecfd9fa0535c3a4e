package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrWeakPassword is safe to surface verbatim; it carries the failed
// requirement, never the password itself.
var ErrWeakPassword = errors.New("password too weak")

const minPasswordLength = 8

// Small denylist of passwords seen constantly in credential dumps.
// Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"12345678":   {},
	"123456789":  {},
	"qwerty123":  {},
	"letmein123": {},
	"iloveyou1":  {},
	"welcome1":   {},
	"admin123":   {},
}

// ValidatePassword enforces registration password strength: minimum
// length, mixed case, a digit, a special character, and not a well-known
// password.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, minPasswordLength)
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return fmt.Errorf("%w: too common", ErrWeakPassword)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("%w: missing uppercase letter", ErrWeakPassword)
	case !hasLower:
		return fmt.Errorf("%w: missing lowercase letter", ErrWeakPassword)
	case !hasDigit:
		return fmt.Errorf("%w: missing digit", ErrWeakPassword)
	case !hasSpecial:
		return fmt.Errorf("%w: missing special character", ErrWeakPassword)
	}
	return nil
}
