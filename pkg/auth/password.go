package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultBcryptCost keeps interactive verification in the tens of
	// milliseconds while staying expensive for offline attacks.
	DefaultBcryptCost = 12

	// MaxPasswordLen matches bcrypt's 72-byte input limit.
	MaxPasswordLen = 72
)

// Hasher performs one-way credential hashing with a tunable work factor.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Out-of-range
// costs fall back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{Cost: cost}
}

// NormalizePassword applies NFKC so visually-identical strings with
// different code-point decompositions hash identically.
func NormalizePassword(password string) string {
	return norm.NFKC.String(password)
}

// Hash returns the bcrypt hash of the NFKC-normalized password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	normalized := NormalizePassword(password)
	if len(normalized) > MaxPasswordLen {
		return "", fmt.Errorf("password must be at most %d bytes", MaxPasswordLen)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(normalized), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare reports whether the password matches the stored hash. A
// malformed stored hash is logged and treated as a mismatch, never an
// error.
func (h *Hasher) Compare(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(NormalizePassword(password)))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		slog.Warn("stored credential hash is malformed", slog.Any("error", err))
	}
	return err == nil
}
