package models

import "errors"

// Sentinel errors for common failure conditions. Handlers map these to
// HTTP statuses; services never return raw store errors to callers.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Registration / profile errors
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicateHandle = errors.New("handle already taken")
	ErrWeakPassword    = errors.New("password does not meet requirements")

	// Authentication errors. ErrInvalidCredentials covers both "no such
	// account" and "wrong password" so responses carry no existence oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrMFACodeRequired    = errors.New("authenticator code required")

	// Token errors. Distinguished internally so callers can signal
	// "please log in again" vs "malformed request".
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("token is invalid")

	// Recovery errors. Expired, wrong and already-used codes are
	// indistinguishable externally.
	ErrRecoveryCodeInvalid = errors.New("recovery code is invalid or expired")
)
