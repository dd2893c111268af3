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

// AuthServiceInterface defines the interface for the auth orchestrator.
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, handle string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password, totpCode, ip, userAgent string) (*services.AuthResult, error)
	CheckAuth(ctx context.Context, token string) (*services.AccountResponse, bool)
	UpdateProfile(ctx context.Context, accountID, newHandle string) (*services.AccountResponse, error)
}

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	service   AuthServiceInterface
	cookieCfg auth.CookieConfig
	tm        *auth.TokenManager
	ipConfig  *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service AuthServiceInterface, tm *auth.TokenManager, cookieCfg auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		cookieCfg: cookieCfg,
		tm:        tm,
		ipConfig:  ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Handle   string `json:"handle" validate:"required,min=3,max=30"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// UpdateProfileRequest represents the request body for profile updates
type UpdateProfileRequest struct {
	Handle string `json:"handle" validate:"required,min=3,max=30"`
}

// MeResponse reports the session check outcome. Failures never surface
// as errors, only as is_authenticated=false.
type MeResponse struct {
	IsAuthenticated bool                      `json:"is_authenticated"`
	Account         *services.AccountResponse `json:"account,omitempty"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Handle)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			// The explicit duplicate responses during registration are a
			// documented exception to the no-enumeration rule.
			pkghttp.WriteConflict(w, "Email is already registered")
		case errors.Is(err, models.ErrDuplicateHandle):
			pkghttp.WriteConflict(w, "Handle is already taken")
		case errors.Is(err, models.ErrWeakPassword):
			pkghttp.WriteBadRequest(w, "Password does not meet the strength requirements")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid email or handle format")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, h.tm.TTL(), h.cookieCfg)
	pkghttp.WriteSuccess(w, http.StatusCreated, "Account created", result)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.TOTPCode, ip, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Invalid email or password")
		case errors.Is(err, models.ErrAccountLocked):
			// Disclosing lock state confirms the account exists; accepted
			// tradeoff for user clarity.
			pkghttp.WriteUnauthorized(w, "Account is temporarily locked. Try again later or reset your password.")
		case errors.Is(err, models.ErrMFACodeRequired):
			pkghttp.WriteUnauthorized(w, "Authenticator code required")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, h.tm.TTL(), h.cookieCfg)
	pkghttp.WriteSuccess(w, http.StatusOK, "Logged in", result)
}

// Logout handles POST /auth/logout. Sessions are stateless; logout only
// clears the transport-level cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieCfg)
	pkghttp.WriteSuccess(w, http.StatusOK, "Logged out", nil)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.ExtractFromRequest(r, h.cookieCfg.Name)
	account, ok := h.service.CheckAuth(r.Context(), token)
	if !ok {
		pkghttp.WriteSuccess(w, http.StatusOK, "Not authenticated", &MeResponse{IsAuthenticated: false})
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Authenticated", &MeResponse{IsAuthenticated: true, Account: account})
}

// UpdateProfile handles PATCH /auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), claims.AccountID, req.Handle)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateHandle):
			pkghttp.WriteConflict(w, "Handle is already taken")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid handle format")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Profile updated", account)
}
