package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/models"
	pkghttp "github.com/courierchat/courier/pkg/http"
)

// RecoveryServiceInterface defines the interface for account recovery flows.
type RecoveryServiceInterface interface {
	InitPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, email, code, newPassword string) error
	GenerateBackupCodes(ctx context.Context, accountID string) ([]string, error)
	ValidateBackupCode(ctx context.Context, accountID, code string) (bool, error)
	RemainingBackupCodes(ctx context.Context, accountID string) (int, error)
	SendEmailVerification(ctx context.Context, accountID, email string) error
	ConfirmEmail(ctx context.Context, email, code string) error
}

// RecoveryHandler handles password reset and backup code HTTP requests.
type RecoveryHandler struct {
	service RecoveryServiceInterface
}

// NewRecoveryHandler creates a new RecoveryHandler.
func NewRecoveryHandler(service RecoveryServiceInterface) *RecoveryHandler {
	return &RecoveryHandler{service: service}
}

// InitPasswordResetRequest represents the request body for starting a reset
type InitPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// CompletePasswordResetRequest represents the request body for finishing a reset
type CompletePasswordResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required"`
}

// UseBackupCodeRequest represents the request body for redeeming a backup code
type UseBackupCodeRequest struct {
	Code string `json:"code" validate:"required,len=10"`
}

// VerifyEmailRequest represents the request body for email confirmation
type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// BackupCodesResponse carries freshly generated backup codes. Codes are
// shown once and stored only as hashes.
type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// InitPasswordReset handles POST /recovery/init-password-reset.
//
// The response is identical whether or not the email maps to an account.
func (h *RecoveryHandler) InitPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req InitPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.InitPasswordReset(r.Context(), req.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "If the email is registered, a recovery code has been sent", nil)
}

// CompletePasswordReset handles POST /recovery/verify-recovery-code.
func (h *RecoveryHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req CompletePasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.CompletePasswordReset(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteBadRequest(w, "Password does not meet the strength requirements")
		case errors.Is(err, models.ErrRecoveryCodeInvalid):
			pkghttp.WriteUnauthorized(w, "Invalid or expired recovery code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password has been reset", nil)
}

// GenerateBackupCodes handles POST /recovery/backup-codes.
//
// Replaces any existing backup codes for the account.
func (h *RecoveryHandler) GenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	codes, err := h.service.GenerateBackupCodes(r.Context(), claims.AccountID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Backup codes generated", &BackupCodesResponse{Codes: codes})
}

// UseBackupCode handles POST /recovery/use-backup-code.
func (h *RecoveryHandler) UseBackupCode(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UseBackupCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ok, err := h.service.ValidateBackupCode(r.Context(), claims.AccountID, req.Code)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if !ok {
		pkghttp.WriteUnauthorized(w, "Invalid backup code")
		return
	}

	remaining, err := h.service.RemainingBackupCodes(r.Context(), claims.AccountID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Backup code accepted", map[string]int{"remaining": remaining})
}

// SendEmailVerification handles POST /recovery/send-email-verification.
func (h *RecoveryHandler) SendEmailVerification(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.SendEmailVerification(r.Context(), claims.AccountID, claims.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Verification code sent", nil)
}

// VerifyEmail handles POST /recovery/verify-email.
func (h *RecoveryHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ConfirmEmail(r.Context(), claims.Email, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrRecoveryCodeInvalid):
			pkghttp.WriteUnauthorized(w, "Invalid or expired verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Email verified", nil)
}
