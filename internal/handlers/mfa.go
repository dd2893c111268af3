package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/services"
	pkghttp "github.com/courierchat/courier/pkg/http"
)

// MFAServiceInterface defines the interface for authenticator enrollment.
type MFAServiceInterface interface {
	Setup(ctx context.Context, accountID string) (*services.MFASetupResult, error)
	Activate(ctx context.Context, accountID, code string) error
	Disable(ctx context.Context, accountID, code string) error
}

// MFAHandler handles authenticator app HTTP requests.
type MFAHandler struct {
	service MFAServiceInterface
}

// NewMFAHandler creates a new MFAHandler.
func NewMFAHandler(service MFAServiceInterface) *MFAHandler {
	return &MFAHandler{service: service}
}

// MFACodeRequest represents a request carrying a TOTP code
type MFACodeRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

// Setup handles POST /auth/mfa/setup.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	result, err := h.service.Setup(r.Context(), claims.AccountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Scan the QR code with an authenticator app", result)
}

// Activate handles POST /auth/mfa/activate.
func (h *MFAHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFACodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Activate(r.Context(), claims.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid authenticator code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Authenticator setup has not been started")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Authenticator enabled", nil)
}

// Disable handles POST /auth/mfa/disable.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req MFACodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), claims.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid authenticator code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Authenticator is not enabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Authenticator disabled", nil)
}
