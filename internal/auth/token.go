package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/courierchat/courier/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and verifies signed session tokens. Tokens are
// stateless; there is no revocation list, expiry is the only termination.
type TokenManager struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(secret string, ttl time.Duration, issuer, audience string) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		audience: audience,
	}
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a session token for the account.
func (tm *TokenManager) Issue(accountID, email, handle string) (string, error) {
	now := time.Now()
	claims := &models.SessionClaims{
		AccountID: accountID,
		Email:     email,
		Handle:    handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Verify parses and validates a session token. Returns
// models.ErrTokenExpired for tokens past expiry and models.ErrInvalidToken
// for every other failure (bad signature, malformed, issuer/audience
// mismatch) so callers can distinguish "log in again" from a bad request.
func (tm *TokenManager) Verify(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return tm.secret, nil
		},
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrInvalidToken
	}

	if !token.Valid || claims.AccountID == "" {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}

// ExtractFromRequest pulls a session token from the request transport.
// The session cookie takes precedence over an Authorization bearer header.
func ExtractFromRequest(r *http.Request, cookieName string) (string, bool) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
