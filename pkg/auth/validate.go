package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const MaxEmailLen = 254

var (
	handleRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)
	// Loose local@domain.tld shape; exotic RFC edge cases are out of scope.
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// PasswordPolicy holds the configurable strength requirements. Lowercase
// is always required; the other character classes are toggleable.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy matches the production defaults.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      8,
		RequireUpper:   true,
		RequireDigit:   true,
		RequireSpecial: false,
	}
}

// Common weak passwords to reject regardless of character classes.
var commonPasswords = map[string]bool{
	"password":    true,
	"password1":   true,
	"password123": true,
	"passw0rd":    true,
	"12345678":    true,
	"123456789":   true,
	"qwertyuiop":  true,
	"letmein1":    true,
	"welcome1":    true,
	"iloveyou":    true,
	"sunshine":    true,
	"princess":    true,
	"trustno1":    true,
}

// Validate checks the password against the policy. Deterministic, no I/O.
// Length is measured on the NFKC form, the same bytes the hasher sees, so
// a password the policy accepts always fits the hasher's input limit.
func (p PasswordPolicy) Validate(password string) error {
	password = NormalizePassword(password)

	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters", p.MinLength)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be at most %d characters", MaxPasswordLen)
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false
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

	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if p.RequireUpper && !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}
	if p.RequireSpecial && !hasSpecial {
		return fmt.Errorf("password must contain at least one special character")
	}

	if commonPasswords[strings.ToLower(password)] {
		return fmt.Errorf("password is too common")
	}

	return nil
}

// ValidEmail reports whether the string has a basic local@domain.tld shape.
func ValidEmail(email string) bool {
	if email == "" || len(email) > MaxEmailLen {
		return false
	}
	return emailRegex.MatchString(email)
}

// ValidHandle reports whether the handle is 3-30 chars of [A-Za-z0-9_].
func ValidHandle(handle string) bool {
	return handleRegex.MatchString(handle)
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeHandle trims a handle for storage and lookup.
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(handle)
}
