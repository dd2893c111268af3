package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed, stateless session token payload. There is
// no server-side revocation; expiry is the only termination.
type SessionClaims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Handle    string `json:"handle"`
	jwt.RegisteredClaims
}
