package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/courierchat/courier/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecoveryRepository stores hashed single-use recovery codes and backup
// codes. Consumption paths are single atomic statements so a code can
// never be redeemed twice by racing requests.
type RecoveryRepository struct {
	db *database.DB
}

func NewRecoveryRepository(db *database.DB) *RecoveryRepository {
	return &RecoveryRepository{db: db}
}

// Supersede replaces any live recovery request for the account and
// purpose with a fresh one. Delete-then-insert inside one transaction
// guarantees at most one live request.
func (r *RecoveryRepository) Supersede(ctx context.Context, accountID, purpose, codeHash string, expiresAt time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM recovery_requests WHERE account_id = $1 AND purpose = $2`,
			accountID, purpose,
		); err != nil {
			return fmt.Errorf("failed to delete prior recovery request: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO recovery_requests (id, account_id, purpose, code_hash, expires_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New().String(), accountID, purpose, codeHash, expiresAt,
		); err != nil {
			return fmt.Errorf("failed to insert recovery request: %w", err)
		}

		return nil
	})
}

// Consume atomically finds and deletes a matching non-expired request.
// Returns true only for the single caller that wins the delete.
func (r *RecoveryRepository) Consume(ctx context.Context, accountID, purpose, codeHash string) (bool, error) {
	query := `
		DELETE FROM recovery_requests
		WHERE account_id = $1 AND purpose = $2 AND code_hash = $3 AND expires_at > now()
		RETURNING id`

	var id string
	err := r.db.Pool.QueryRow(ctx, query, accountID, purpose, codeHash).Scan(&id)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return true, nil
}

// DeleteExpired purges recovery requests past their expiry. Expired rows
// already fail Consume; this keeps the table from growing.
func (r *RecoveryRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM recovery_requests WHERE expires_at <= now()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ReplaceBackupCodes swaps the account's entire backup code set for the
// given hashes. Old codes are invalidated in the same transaction.
func (r *RecoveryRepository) ReplaceBackupCodes(ctx context.Context, accountID string, codeHashes []string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM backup_codes WHERE account_id = $1`, accountID,
		); err != nil {
			return fmt.Errorf("failed to delete prior backup codes: %w", err)
		}

		for _, hash := range codeHashes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO backup_codes (id, account_id, code_hash) VALUES ($1, $2, $3)`,
				uuid.New().String(), accountID, hash,
			); err != nil {
				return fmt.Errorf("failed to insert backup code: %w", err)
			}
		}

		return nil
	})
}

// ConsumeBackupCode removes exactly one matching hash from the set.
// First writer wins; a racing second request observes the code gone.
func (r *RecoveryRepository) ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error) {
	query := `
		DELETE FROM backup_codes
		WHERE id = (
			SELECT id FROM backup_codes
			WHERE account_id = $1 AND code_hash = $2
			LIMIT 1
		)
		RETURNING id`

	var id string
	err := r.db.Pool.QueryRow(ctx, query, accountID, codeHash).Scan(&id)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return true, nil
}

// CountBackupCodes returns how many unused backup codes remain.
func (r *RecoveryRepository) CountBackupCodes(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE account_id = $1`, accountID,
	).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
