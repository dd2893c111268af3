package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courierchat/courier/internal/models"
	pkghttp "github.com/courierchat/courier/pkg/http"
)

// AdminServiceInterface defines the operations behind the admin surface.
type AdminServiceInterface interface {
	UnlockAccount(ctx context.Context, email string) error
}

// AdminHandler handles admin-only HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// UnlockAccountRequest represents the request body for a manual unlock
type UnlockAccountRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UnlockAccount handles POST /admin/unlock-account. Clears a login lock
// without waiting for it to expire.
func (h *AdminHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	var req UnlockAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.UnlockAccount(r.Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Account unlocked", nil)
}
