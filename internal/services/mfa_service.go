package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/models"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

// MFAService handles authenticator (TOTP) enrollment. The secret is
// stored encrypted and only takes effect after the first valid code.
type MFAService struct {
	accounts    AccountRepository
	totp        *auth.TOTPManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewMFAService creates an MFAService.
func NewMFAService(accounts AccountRepository, totp *auth.TOTPManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *MFAService {
	return &MFAService{
		accounts:    accounts,
		totp:        totp,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// MFASetupResult carries the enrollment material, returned exactly once.
type MFASetupResult struct {
	Secret    string `json:"secret"`
	QRDataURL string `json:"qr_data_url"`
}

// Setup generates and stores a new authenticator secret for the account.
// MFA stays disabled until Activate sees a valid code.
func (s *MFAService) Setup(ctx context.Context, accountID string) (*MFASetupResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to fetch account for mfa setup", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	encrypted, nonce, secret, qrDataURL, err := s.totp.GenerateSecret(account.Email)
	if err != nil {
		s.logger.Error("failed to generate authenticator secret", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.accounts.SetTOTPSecret(ctx, accountID, encrypted, nonce); err != nil {
		s.logger.Error("failed to store authenticator secret", slog.String("account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &MFASetupResult{Secret: secret, QRDataURL: qrDataURL}, nil
}

// Activate enables MFA after verifying the first code from the enrolled
// authenticator.
func (s *MFAService) Activate(ctx context.Context, accountID, code string) error {
	account, err := s.accounts.GetByIDWithCredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrInternalServer
	}

	if len(account.TOTPSecret) == 0 {
		return models.ErrBadRequest
	}

	valid, err := s.totp.Validate(account.TOTPSecret, account.TOTPNonce, code)
	if err != nil {
		s.logger.Error("failed to validate authenticator code", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrInvalidCredentials
	}

	if err := s.accounts.SetMFAEnabled(ctx, accountID, true); err != nil {
		s.logger.Error("failed to enable mfa", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("mfa_enabled", accountID, "", nil)
	return nil
}

// Disable turns MFA off after verifying a current code, and discards the
// stored secret.
func (s *MFAService) Disable(ctx context.Context, accountID, code string) error {
	account, err := s.accounts.GetByIDWithCredential(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrInternalServer
	}

	if !account.MFAEnabled {
		return models.ErrBadRequest
	}

	valid, err := s.totp.Validate(account.TOTPSecret, account.TOTPNonce, code)
	if err != nil {
		return models.ErrInternalServer
	}
	if !valid {
		return models.ErrInvalidCredentials
	}

	if err := s.accounts.SetMFAEnabled(ctx, accountID, false); err != nil {
		s.logger.Error("failed to disable mfa", slog.String("account_id", accountID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("mfa_disabled", accountID, "", nil)
	return nil
}
