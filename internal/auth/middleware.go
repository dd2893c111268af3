package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/courierchat/courier/internal/models"
	pkghttp "github.com/courierchat/courier/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// AccountFetcher fetches accounts for role checks.
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// RequireSession validates the session token and injects claims into the
// request context. The cookie is checked before the bearer header.
func RequireSession(tm *TokenManager, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := ExtractFromRequest(r, cookieName)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces a coarse role check. Must run after RequireSession.
func RequireRole(accounts AccountFetcher, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := SessionFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			account, err := accounts.GetByID(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Authentication required")
					return
				}
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if account.Role != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext extracts session claims from the request context.
func SessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
