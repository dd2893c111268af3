package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courierchat/courier/internal/models"
	pkgauth "github.com/courierchat/courier/pkg/auth"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

const (
	recoveryCodeLen = 6
	backupCodeLen   = 10
	backupCodeCount = 5

	// No ambiguous characters are excluded; codes are entered from email
	// or a saved list, not read over the phone.
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RecoveryStore defines the recovery-code and backup-code store
// operations.
type RecoveryStore interface {
	Supersede(ctx context.Context, accountID, purpose, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, accountID, purpose, codeHash string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
	ReplaceBackupCodes(ctx context.Context, accountID string, codeHashes []string) error
	ConsumeBackupCode(ctx context.Context, accountID, codeHash string) (bool, error)
	CountBackupCodes(ctx context.Context, accountID string) (int, error)
}

// EmailSender delivers recovery and verification codes out of band.
type EmailSender interface {
	SendRecoveryCode(ctx context.Context, email, code string, expiresAt time.Time) error
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// RecoveryService generates and validates single-use, hashed, time-boxed
// recovery codes and backup codes.
type RecoveryService struct {
	accounts    AccountRepository
	store       RecoveryStore
	hasher      *pkgauth.Hasher
	policy      pkgauth.PasswordPolicy
	email       EmailSender
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	codeTTL     time.Duration
}

// NewRecoveryService creates a RecoveryService.
func NewRecoveryService(
	accounts AccountRepository,
	store RecoveryStore,
	hasher *pkgauth.Hasher,
	policy pkgauth.PasswordPolicy,
	email EmailSender,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	codeTTL time.Duration,
) *RecoveryService {
	return &RecoveryService{
		accounts:    accounts,
		store:       store,
		hasher:      hasher,
		policy:      policy,
		email:       email,
		logger:      logger,
		auditLogger: auditLogger,
		codeTTL:     codeTTL,
	}
}

// GenerateRecoveryCode creates a fresh recovery code for the account,
// superseding any live one, and returns the plaintext exactly once.
func (s *RecoveryService) GenerateRecoveryCode(ctx context.Context, accountID string) (string, error) {
	return s.generateCode(ctx, accountID, models.RecoveryPurposePasswordReset)
}

// VerifyRecoveryCode checks a candidate code and consumes it on match.
// Find-and-delete is a single store operation, so a code succeeds exactly
// once even under concurrent verification.
func (s *RecoveryService) VerifyRecoveryCode(ctx context.Context, accountID, candidateCode string) (bool, error) {
	return s.store.Consume(ctx, accountID, models.RecoveryPurposePasswordReset, hashCode(candidateCode))
}

// InitPasswordReset starts a reset flow. A nonexistent email is not an
// error: the caller's response is identical either way to prevent
// account enumeration.
func (s *RecoveryService) InitPasswordReset(ctx context.Context, email string) error {
	email = pkgauth.NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to look up account for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, err := s.GenerateRecoveryCode(ctx, account.ID)
	if err != nil {
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.codeTTL)
	if err := s.email.SendRecoveryCode(ctx, account.Email, code, expiresAt); err != nil {
		s.logger.Error("failed to send recovery code", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("password_reset_initiated", account.ID, "", nil)
	return nil
}

// CompletePasswordReset consumes a recovery code and rotates the
// credential. Expired, wrong and already-used codes are
// indistinguishable to the caller.
func (s *RecoveryService) CompletePasswordReset(ctx context.Context, email, code, newPassword string) error {
	email = pkgauth.NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrRecoveryCodeInvalid
		}
		s.logger.Error("failed to look up account for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Validate the replacement before burning the single-use code.
	if err := s.policy.Validate(newPassword); err != nil {
		return models.ErrWeakPassword
	}

	ok, err := s.VerifyRecoveryCode(ctx, account.ID, code)
	if err != nil {
		s.logger.Error("failed to verify recovery code", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !ok {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "password_reset_failed",
			AccountID:     account.ID,
			FailureReason: "invalid_recovery_code",
			Success:       false,
		})
		return models.ErrRecoveryCodeInvalid
	}

	credentialHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.UpdateCredential(ctx, account.ID, credentialHash); err != nil {
		s.logger.Error("failed to rotate credential", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// A completed recovery also clears any lockout state.
	if err := s.accounts.ResetLockout(ctx, account.ID); err != nil {
		s.logger.Error("failed to reset lockout after password reset", slog.String("account_id", account.ID), slog.Any("error", err))
	}

	s.auditLogger.LogCredentialChange(account.ID, "", true)
	return nil
}

// GenerateBackupCodes replaces the account's backup code set and returns
// the five plaintexts exactly once.
func (s *RecoveryService) GenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	codes := make([]string, backupCodeCount)
	hashes := make([]string, backupCodeCount)
	for i := range codes {
		code, err := randomCode(backupCodeLen)
		if err != nil {
			return nil, models.ErrInternalServer
		}
		codes[i] = code
		hashes[i] = hashCode(code)
	}

	if err := s.store.ReplaceBackupCodes(ctx, accountID, hashes); err != nil {
		s.logger.Error("failed to replace backup codes", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("backup_codes_generated", accountID, "", nil)
	return codes, nil
}

// ValidateBackupCode consumes a single matching backup code, leaving the
// rest of the set intact.
func (s *RecoveryService) ValidateBackupCode(ctx context.Context, accountID, candidateCode string) (bool, error) {
	ok, err := s.store.ConsumeBackupCode(ctx, accountID, hashCode(candidateCode))
	if err != nil {
		s.logger.Error("failed to consume backup code", slog.String("account_id", accountID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "backup_code_used",
		AccountID: accountID,
		Success:   ok,
	})
	return ok, nil
}

// RemainingBackupCodes returns the count of unused backup codes.
func (s *RecoveryService) RemainingBackupCodes(ctx context.Context, accountID string) (int, error) {
	return s.store.CountBackupCodes(ctx, accountID)
}

// SendEmailVerification issues and delivers an email verification code.
func (s *RecoveryService) SendEmailVerification(ctx context.Context, accountID, email string) error {
	code, err := s.generateCode(ctx, accountID, models.RecoveryPurposeEmailVerify)
	if err != nil {
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.codeTTL)
	if err := s.email.SendVerificationCode(ctx, email, code, expiresAt); err != nil {
		s.logger.Error("failed to send verification code", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// ConfirmEmail consumes a verification code and marks the account
// verified.
func (s *RecoveryService) ConfirmEmail(ctx context.Context, email, code string) error {
	email = pkgauth.NormalizeEmail(email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrRecoveryCodeInvalid
		}
		return models.ErrInternalServer
	}

	ok, err := s.store.Consume(ctx, account.ID, models.RecoveryPurposeEmailVerify, hashCode(code))
	if err != nil {
		s.logger.Error("failed to consume verification code", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !ok {
		return models.ErrRecoveryCodeInvalid
	}

	if err := s.accounts.SetVerified(ctx, account.ID); err != nil {
		s.logger.Error("failed to mark account verified", slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("email_verified", account.ID, "", nil)
	return nil
}

// CleanupExpired purges expired recovery requests. Called by the
// background cleanup.
func (s *RecoveryService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx)
}

func (s *RecoveryService) generateCode(ctx context.Context, accountID, purpose string) (string, error) {
	code, err := randomCode(recoveryCodeLen)
	if err != nil {
		s.logger.Error("failed to generate recovery code", slog.Any("error", err))
		return "", err
	}

	expiresAt := time.Now().Add(s.codeTTL)
	if err := s.store.Supersede(ctx, accountID, purpose, hashCode(code), expiresAt); err != nil {
		s.logger.Error("failed to store recovery code", slog.String("account_id", accountID), slog.Any("error", err))
		return "", err
	}

	return code, nil
}

// randomCode returns an n-character code from a cryptographically secure
// random source. Bytes outside the largest multiple of the charset size
// are discarded so every character is equally likely.
func randomCode(n int) (string, error) {
	limit := byte(256 - 256%len(codeCharset))
	code := make([]byte, 0, n)
	buf := make([]byte, 2*n)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeCharset[int(b)%len(codeCharset)])
			if len(code) == n {
				break
			}
		}
	}
	return string(code), nil
}

// hashCode returns the hex SHA-256 of a code. Hash equality is the
// comparison; no partial-credit matching.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
