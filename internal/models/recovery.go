package models

import "time"

// Recovery code purposes. At most one live code exists per
// (account, purpose) pair; issuing a new one supersedes the old.
const (
	RecoveryPurposePasswordReset = "password_reset"
	RecoveryPurposeEmailVerify   = "email_verify"
)

// RecoveryRequest is an ephemeral single-use code record. Only the
// SHA-256 hash of the code is stored; consumption deletes the row.
type RecoveryRequest struct {
	ID        string
	AccountID string
	Purpose   string
	CodeHash  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BackupCode is one stored hash from an account's backup code set.
// Codes are consumed by deleting their row, so the set only shrinks.
type BackupCode struct {
	ID        string
	AccountID string
	CodeHash  string
	CreatedAt time.Time
}
