package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/models"
)

type stubAccountFetcher struct {
	account *models.Account
	err     error
}

func (s *stubAccountFetcher) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return s.account, s.err
}

func TestRequireSession_ValidCookie(t *testing.T) {
	tm := newTestTokenManager(time.Hour)
	token, err := tm.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)

	var gotClaims *models.SessionClaims
	handler := RequireSession(tm, "courier_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = SessionFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "courier_session", Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "acct-1", gotClaims.AccountID)
}

func TestRequireSession_MissingToken(t *testing.T) {
	tm := newTestTokenManager(time.Hour)

	handler := RequireSession(tm, "courier_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireSession_ExpiredToken(t *testing.T) {
	expired := newTestTokenManager(-time.Minute)
	token, err := expired.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)

	tm := newTestTokenManager(time.Hour)
	handler := RequireSession(tm, "courier_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an expired session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "courier_session", Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		accounts   AccountFetcher
		wantStatus int
	}{
		{
			name:       "matching role",
			accounts:   &stubAccountFetcher{account: &models.Account{ID: "acct-1", Role: models.RoleAdmin}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong role",
			accounts:   &stubAccountFetcher{account: &models.Account{ID: "acct-1", Role: models.RoleUser}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "account gone",
			accounts:   &stubAccountFetcher{err: models.ErrNotFound},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.accounts, models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			claims := &models.SessionClaims{AccountID: "acct-1"}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), SessionContextKey, claims))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionFromContext_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, SessionFromContext(req))
}
