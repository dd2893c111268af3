package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/courierchat/courier/internal/auth"
	"github.com/courierchat/courier/internal/background"
	"github.com/courierchat/courier/internal/config"
	"github.com/courierchat/courier/internal/database"
	"github.com/courierchat/courier/internal/handlers"
	middlewareCustom "github.com/courierchat/courier/internal/middleware"
	"github.com/courierchat/courier/internal/models"
	"github.com/courierchat/courier/internal/repositories"
	"github.com/courierchat/courier/internal/routes"
	"github.com/courierchat/courier/internal/services"
	pkgauth "github.com/courierchat/courier/pkg/auth"
	pkghttp "github.com/courierchat/courier/pkg/http"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := database.Migrate(cfg.Database.DSN()); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	accountRepo := repositories.NewAccountRepository(db)
	recoveryRepo := repositories.NewRecoveryRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL,
		cfg.Auth.TokenIssuer,
		cfg.Auth.TokenAudience,
	)

	totpManager, err := auth.NewTOTPManager(cfg.Security.MFAEncryptionKey, cfg.Security.MFAIssuer)
	if err != nil {
		logger.Error("failed to initialize authenticator manager", slog.Any("error", err))
		os.Exit(1)
	}

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Security.TimingDelayBaseMs,
		RandomDelayMs: cfg.Security.TimingDelayRandomMs,
	})

	hasher := pkgauth.NewHasher(cfg.Security.BcryptCost)
	policy := pkgauth.PasswordPolicy{
		MinLength:      cfg.Security.PasswordMinLength,
		RequireUpper:   cfg.Security.PasswordRequireUpper,
		RequireDigit:   cfg.Security.PasswordRequireDigit,
		RequireSpecial: cfg.Security.PasswordRequireSpecial,
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	lockoutPolicy := services.NewLockoutPolicy(accountRepo, services.LockoutConfig{
		MaxFailedLogins: cfg.Security.MaxFailedLogins,
		LockDuration:    cfg.Security.LockDuration,
	}, logger, auditLogger)

	var emailSender services.EmailSender
	if cfg.Email.Provider == "ses" {
		sesSender, err := services.NewAWSSESEmailSender(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email sender", slog.Any("error", err))
			os.Exit(1)
		}
		emailSender = sesSender
	} else {
		emailSender = services.NewLogEmailSender(logger)
	}

	authService := services.NewAuthService(accountRepo, hasher, policy, tokenManager, lockoutPolicy, totpManager, timingDelay, logger, auditLogger)
	recoveryService := services.NewRecoveryService(accountRepo, recoveryRepo, hasher, policy, emailSender, logger, auditLogger, cfg.Security.RecoveryCodeTTL)
	mfaService := services.NewMFAService(accountRepo, totpManager, logger, auditLogger)

	cookieConfig := auth.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	authHandler := handlers.NewAuthHandler(authService, tokenManager, cookieConfig, ipConfig)
	recoveryHandler := handlers.NewRecoveryHandler(recoveryService)
	mfaHandler := handlers.NewMFAHandler(mfaService)
	adminHandler := handlers.NewAdminHandler(authService)

	cleanupManager := background.NewCleanupManager(recoveryService, accountRepo, logger, cfg.Auth.CleanupInterval)

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(bootstrapCtx, accountRepo, hasher, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, recoveryHandler, mfaHandler, adminHandler, accountRepo, tokenManager, cfg.Auth.CookieName)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminAccount creates the first admin account if ADMIN_EMAIL and
// ADMIN_PASSWORD are set.
func ensureAdminAccount(ctx context.Context, accountRepo *repositories.AccountRepository, hasher *pkgauth.Hasher, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	_, err := accountRepo.GetByEmail(ctx, pkgauth.NormalizeEmail(adminEmail))
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for admin account: %w", err)
	}

	credentialHash, err := hasher.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	account, err := accountRepo.Create(ctx, pkgauth.NormalizeEmail(adminEmail), credentialHash, "admin")
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	if err := accountRepo.SetRole(ctx, account.ID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to promote admin account: %w", err)
	}
	if err := accountRepo.SetVerified(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to verify admin account: %w", err)
	}

	logger.Info("admin account created")
	return nil
}
