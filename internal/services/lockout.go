package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/courierchat/courier/internal/models"
	pkglogger "github.com/courierchat/courier/pkg/logger"
)

// LockoutConfig holds the lockout thresholds.
type LockoutConfig struct {
	MaxFailedLogins int           // lock after this many consecutive failures
	LockDuration    time.Duration // how long a triggered lock holds
}

// DefaultLockoutConfig matches the production policy: 5 failures, 2h lock.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailedLogins: 5,
		LockDuration:    2 * time.Hour,
	}
}

// LockoutPolicy is the per-account failed-login state machine. Counter
// updates go through store-level atomic increments so concurrent failed
// logins never lose updates.
type LockoutPolicy struct {
	repo        AccountRepository
	cfg         LockoutConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewLockoutPolicy creates a LockoutPolicy.
func NewLockoutPolicy(repo AccountRepository, cfg LockoutConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutPolicy {
	return &LockoutPolicy{
		repo:        repo,
		cfg:         cfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// IsLocked reports whether the account rejects authentication attempts
// right now. Used as a hard gate before any credential comparison.
func (p *LockoutPolicy) IsLocked(account *models.Account, now time.Time) bool {
	return account.Locked(now)
}

// RecordFailure registers a failed attempt. A lapsed lock is cleared
// implicitly, but the attempt that triggered the check restarts counting
// at 1 rather than being forgiven.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, account *models.Account, ip string) error {
	now := time.Now()

	if account.IsLocked && account.LockedUntil != nil && !now.Before(*account.LockedUntil) {
		return p.repo.RestartFailureCount(ctx, account.ID)
	}

	count, err := p.repo.IncrementFailedLogins(ctx, account.ID)
	if err != nil {
		return err
	}

	if count >= p.cfg.MaxFailedLogins {
		lockedUntil := now.Add(p.cfg.LockDuration)
		if err := p.repo.Lock(ctx, account.ID, lockedUntil); err != nil {
			return err
		}

		p.logger.Warn("account locked after repeated failed logins",
			slog.String("account_id", account.ID),
			slog.Int("failed_count", count),
			slog.Time("locked_until", lockedUntil))
		p.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_locked",
			AccountID:     account.ID,
			IPAddress:     ip,
			FailureReason: "max_failed_logins",
			Success:       false,
		})
	}

	return nil
}

// RecordSuccess clears the failure counter and lock state and stamps the
// login time.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, account *models.Account) error {
	return p.repo.MarkLoginSuccess(ctx, account.ID)
}
