package models

import (
	"time"
)

// Account roles.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Account is the persistent identity record. CredentialHash and
// TOTPSecret are only populated by credential-projection reads and are
// never serialized to clients.
type Account struct {
	ID                     string
	Email                  string // lowercased and trimmed before every write/lookup
	Handle                 string
	CredentialHash         string
	IsVerified             bool
	Role                   string
	MFAEnabled             bool
	TOTPSecret             []byte // AES-GCM encrypted authenticator secret
	TOTPNonce              []byte
	LastCredentialChangeAt time.Time
	LastLoginAt            *time.Time
	FailedLoginCount       int
	IsLocked               bool
	LockedUntil            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Locked reports whether the account is currently locked. A lock whose
// window has lapsed no longer counts.
func (a *Account) Locked(now time.Time) bool {
	return a.IsLocked && a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
