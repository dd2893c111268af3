package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/handlers"
	"github.com/courierchat/courier/internal/models"
)

const testCookieName = "courier_session"

type stubAccountFetcher struct {
	account *models.Account
}

func (s *stubAccountFetcher) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if s.account == nil || s.account.ID != id {
		return nil, models.ErrNotFound
	}
	return s.account, nil
}

func newTestRouter(t *testing.T, fetcher auth.AccountFetcher) (chi.Router, *auth.TokenManager) {
	t.Helper()
	tm := auth.NewTokenManager("test-secret-at-least-16-chars", time.Hour, "courier", "courier-clients")

	authHandler := handlers.NewAuthHandler(&handlers.MockAuthService{}, tm, auth.CookieConfig{Name: testCookieName}, nil)
	recoveryHandler := handlers.NewRecoveryHandler(&handlers.MockRecoveryService{})
	mfaHandler := handlers.NewMFAHandler(&handlers.MockMFAService{})
	adminHandler := handlers.NewAdminHandler(&handlers.MockAdminService{
		UnlockAccountFunc: func(ctx context.Context, email string) error { return nil },
	})

	router := chi.NewRouter()
	RegisterRoutes(router, authHandler, recoveryHandler, mfaHandler, adminHandler, fetcher, tm, testCookieName)
	return router, tm
}

func unlockRequest(t *testing.T, tm *auth.TokenManager, account *models.Account) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/unlock-account", bytes.NewBufferString(`{"email":"locked@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	if account != nil {
		token, err := tm.Issue(account.ID, account.Email, account.Handle)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	}
	return req
}

func TestAdminRoute_AdminRoleAllowed(t *testing.T) {
	admin := &models.Account{ID: "acct-admin", Email: "admin@example.com", Handle: "admin", Role: models.RoleAdmin}
	router, tm := newTestRouter(t, &stubAccountFetcher{account: admin})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, unlockRequest(t, tm, admin))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoute_UserRoleForbidden(t *testing.T) {
	user := &models.Account{ID: "acct-user", Email: "user@example.com", Handle: "user", Role: models.RoleUser}
	router, tm := newTestRouter(t, &stubAccountFetcher{account: user})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, unlockRequest(t, tm, user))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoute_NoSessionUnauthorized(t *testing.T) {
	router, _ := newTestRouter(t, &stubAccountFetcher{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, unlockRequest(t, nil, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
