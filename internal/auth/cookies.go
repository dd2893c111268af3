package auth

import (
	"net/http"
	"time"
)

// CookieConfig holds session cookie settings.
type CookieConfig struct {
	Name   string
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only; enabled in production
}

// SetSessionCookie sets the session token in an httpOnly SameSite=Strict
// cookie.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     config.Name,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(maxAge),
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true, // prevents JavaScript access
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie deletes the session cookie. Logout is purely a
// transport concern; no server state changes.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     config.Name,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	http.SetCookie(w, cookie)
}
