package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/handlers"
	"github.com/courierchat/courier/internal/middleware"
	"github.com/courierchat/courier/internal/models"
)

// RegisterRoutes registers all application routes.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	recoveryHandler *handlers.RecoveryHandler,
	mfaHandler *handlers.MFAHandler,
	adminHandler *handlers.AdminHandler,
	accounts auth.AccountFetcher,
	tokenManager *auth.TokenManager,
	cookieName string,
) {
	authLimit := middleware.DefaultAuthRateLimit()
	recoveryLimit := middleware.DefaultRecoveryRateLimit()

	// Public routes
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(authLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(recoveryLimit)).Post("/recovery/init-password-reset", recoveryHandler.InitPasswordReset)
	router.With(middleware.RateLimitByIP(recoveryLimit)).Post("/recovery/verify-recovery-code", recoveryHandler.CompletePasswordReset)

	// Session check: always 200, never an auth error
	router.Get("/auth/me", authHandler.Me)

	// Session-required routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokenManager, cookieName))

		r.Post("/auth/logout", authHandler.Logout)
		r.Patch("/auth/profile", authHandler.UpdateProfile)

		r.Post("/auth/mfa/setup", mfaHandler.Setup)
		r.Post("/auth/mfa/activate", mfaHandler.Activate)
		r.Post("/auth/mfa/disable", mfaHandler.Disable)

		r.Post("/recovery/backup-codes", recoveryHandler.GenerateBackupCodes)
		r.Post("/recovery/use-backup-code", recoveryHandler.UseBackupCode)
		r.Post("/recovery/send-email-verification", recoveryHandler.SendEmailVerification)
		r.Post("/recovery/verify-email", recoveryHandler.VerifyEmail)
	})

	// Admin-only routes
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokenManager, cookieName))
		r.Use(auth.RequireRole(accounts, models.RoleAdmin))

		r.Post("/admin/unlock-account", adminHandler.UnlockAccount)
	})
}
