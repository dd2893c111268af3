package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/courier/internal/models"
)

const testSecret = "test-secret-at-least-16-chars"

func newTestTokenManager(ttl time.Duration) *TokenManager {
	return NewTokenManager(testSecret, ttl, "courier", "courier-clients")
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := newTestTokenManager(time.Hour)

	token, err := tm.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "someone", claims.Handle)
	assert.Equal(t, "acct-1", claims.Subject)
	assert.NotEmpty(t, claims.ID, "tokens carry a unique JTI")
}

func TestTokenManager_ExpiredToken(t *testing.T) {
	tm := newTestTokenManager(-time.Minute)

	token, err := tm.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := newTestTokenManager(time.Hour)
	other := NewTokenManager("a-completely-different-secret", time.Hour, "courier", "courier-clients")

	token, err := other.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenManager_WrongIssuerOrAudience(t *testing.T) {
	tm := newTestTokenManager(time.Hour)

	badIssuer := NewTokenManager(testSecret, time.Hour, "someone-else", "courier-clients")
	token, err := badIssuer.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	badAudience := NewTokenManager(testSecret, time.Hour, "courier", "other-clients")
	token, err = badAudience.Issue("acct-1", "user@example.com", "someone")
	require.NoError(t, err)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenManager_MalformedToken(t *testing.T) {
	tm := newTestTokenManager(time.Hour)

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		_, err := tm.Verify(bad)
		assert.ErrorIs(t, err, models.ErrInvalidToken, "token %q", bad)
	}
}

func TestExtractFromRequest_CookieTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "courier_session", Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	token, ok := ExtractFromRequest(req, "courier_session")
	require.True(t, ok)
	assert.Equal(t, "cookie-token", token)
}

func TestExtractFromRequest_BearerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	token, ok := ExtractFromRequest(req, "courier_session")
	require.True(t, ok)
	assert.Equal(t, "header-token", token)

	req.Header.Set("Authorization", "bearer lowercase-scheme")
	token, ok = ExtractFromRequest(req, "courier_session")
	require.True(t, ok)
	assert.Equal(t, "lowercase-scheme", token)
}

func TestExtractFromRequest_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := ExtractFromRequest(req, "courier_session")
	assert.False(t, ok)

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, ok = ExtractFromRequest(req, "courier_session")
	assert.False(t, ok)
}
