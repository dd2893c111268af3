package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/courierchat/courier/internal/database"
	"github.com/courierchat/courier/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// accountColumns is the default projection. Credential and authenticator
// material are excluded and must be requested explicitly.
const accountColumns = `id, email, handle, is_verified, role, mfa_enabled,
	last_credential_change_at, last_login_at, failed_login_count, is_locked, locked_until,
	created_at, updated_at`

const accountColumnsWithCredential = `id, email, handle, is_verified, role, mfa_enabled,
	last_credential_change_at, last_login_at, failed_login_count, is_locked, locked_until,
	created_at, updated_at, credential_hash, totp_secret, totp_nonce`

// AccountRepository provides durable, uniqueness-enforcing CRUD over
// accounts. Email and handle uniqueness come from unique indexes, so two
// concurrent registrations with the same email have exactly one winner.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows (single row or rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	err := scanner.Scan(
		&account.ID, &account.Email, &account.Handle, &account.IsVerified,
		&account.Role, &account.MFAEnabled,
		&account.LastCredentialChangeAt, &account.LastLoginAt,
		&account.FailedLoginCount, &account.IsLocked, &account.LockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &account, nil
}

func scanAccountRowWithCredential(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	err := scanner.Scan(
		&account.ID, &account.Email, &account.Handle, &account.IsVerified,
		&account.Role, &account.MFAEnabled,
		&account.LastCredentialChangeAt, &account.LastLoginAt,
		&account.FailedLoginCount, &account.IsLocked, &account.LockedUntil,
		&account.CreatedAt, &account.UpdatedAt,
		&account.CredentialHash, &account.TOTPSecret, &account.TOTPNonce,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &account, nil
}

// Create inserts a new account. Returns models.ErrDuplicateEmail or
// models.ErrDuplicateHandle when a uniqueness constraint is violated at
// write time.
func (r *AccountRepository) Create(ctx context.Context, email, credentialHash, handle string) (*models.Account, error) {
	id := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO accounts (id, email, handle, credential_hash, role, last_credential_change_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		id, email, handle, credentialHash, models.RoleUser, now, now, now,
	))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks up by normalized email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByHandle(ctx context.Context, handle string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE handle = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, handle))
}

// GetByEmailWithCredential is the login projection; it includes the
// credential hash and authenticator material.
func (r *AccountRepository) GetByEmailWithCredential(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumnsWithCredential + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRowWithCredential(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByIDWithCredential(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumnsWithCredential + ` FROM accounts WHERE id = $1`
	return scanAccountRowWithCredential(r.pool.QueryRow(ctx, query, id))
}

// UpdateHandle changes the handle. The unique index turns a race with
// another account into models.ErrDuplicateHandle.
func (r *AccountRepository) UpdateHandle(ctx context.Context, id, handle string) (*models.Account, error) {
	query := `
		UPDATE accounts SET handle = $1, updated_at = now()
		WHERE id = $2
		RETURNING ` + accountColumns
	return scanAccountRow(r.pool.QueryRow(ctx, query, handle, id))
}

// UpdateCredential rotates the credential hash and stamps the change time.
func (r *AccountRepository) UpdateCredential(ctx context.Context, id, credentialHash string) error {
	query := `
		UPDATE accounts
		SET credential_hash = $1, last_credential_change_at = now(), updated_at = now()
		WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, credentialHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetRole(ctx context.Context, id, role string) error {
	query := `UPDATE accounts SET role = $1, updated_at = now() WHERE id = $2`
	result, err := r.pool.Exec(ctx, query, role, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetVerified(ctx context.Context, id string) error {
	query := `UPDATE accounts SET is_verified = TRUE, updated_at = now() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IncrementFailedLogins bumps the failure counter atomically at the store
// and returns the new count. Two concurrent failures never lose an update.
func (r *AccountRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE accounts
		SET failed_login_count = failed_login_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count`
	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// Lock marks the account locked until the given time.
func (r *AccountRepository) Lock(ctx context.Context, id string, until time.Time) error {
	query := `
		UPDATE accounts
		SET is_locked = TRUE, locked_until = $1, updated_at = now()
		WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, until, id)
	return database.MapPostgresError(err)
}

// RestartFailureCount clears a lapsed lock and restarts counting at 1 for
// the failure that triggered the check.
func (r *AccountRepository) RestartFailureCount(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET failed_login_count = 1, is_locked = FALSE, locked_until = NULL, updated_at = now()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// ResetLockout clears the failure counter and lock state. Idempotent.
func (r *AccountRepository) ResetLockout(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET failed_login_count = 0, is_locked = FALSE, locked_until = NULL, updated_at = now()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// MarkLoginSuccess clears lockout state and stamps last_login_at.
func (r *AccountRepository) MarkLoginSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE accounts
		SET failed_login_count = 0, is_locked = FALSE, locked_until = NULL,
			last_login_at = now(), updated_at = now()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// SetTOTPSecret stores the encrypted authenticator secret without
// enabling it; activation happens on the first valid code.
func (r *AccountRepository) SetTOTPSecret(ctx context.Context, id string, secret, nonce []byte) error {
	query := `
		UPDATE accounts
		SET totp_secret = $1, totp_nonce = $2, mfa_enabled = FALSE, updated_at = now()
		WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, secret, nonce, id)
	return database.MapPostgresError(err)
}

func (r *AccountRepository) SetMFAEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE accounts SET mfa_enabled = $1, updated_at = now() WHERE id = $2`
	if !enabled {
		query = `
			UPDATE accounts
			SET mfa_enabled = $1, totp_secret = NULL, totp_nonce = NULL, updated_at = now()
			WHERE id = $2`
	}
	_, err := r.pool.Exec(ctx, query, enabled, id)
	return database.MapPostgresError(err)
}

// ClearLapsedLocks unlocks accounts whose lock window has been over for
// at least the grace period. Called by the background cleanup.
func (r *AccountRepository) ClearLapsedLocks(ctx context.Context, grace time.Duration) (int64, error) {
	query := `
		UPDATE accounts
		SET is_locked = FALSE, failed_login_count = 0, locked_until = NULL, updated_at = now()
		WHERE is_locked = TRUE AND locked_until <= now() - $1::interval`
	result, err := r.pool.Exec(ctx, query, fmt.Sprintf("%d seconds", int(grace.Seconds())))
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
