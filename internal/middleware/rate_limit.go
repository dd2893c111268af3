package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/courierchat/courier/pkg/http"
)

// RateLimitConfig holds per-IP rate limit settings for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit limits credential endpoints to 10 requests per minute per IP.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 10, Window: time.Minute}
}

// DefaultRecoveryRateLimit limits recovery endpoints to 5 requests per minute per IP.
func DefaultRecoveryRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// RateLimitByIP limits requests by client IP and answers over-limit
// requests with the standard envelope and a Retry-After hint.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, slow down", config.Window)
		}),
	)
}
