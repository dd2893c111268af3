package background

import (
	"context"
	"log/slog"
	"time"
)

// RecoveryCleaner purges expired recovery requests.
type RecoveryCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// LockCleaner unlocks accounts whose lock window lapsed long ago.
type LockCleaner interface {
	ClearLapsedLocks(ctx context.Context, grace time.Duration) (int64, error)
}

// CleanupManager periodically purges expired recovery codes and clears
// stale account locks. Lapsed locks also reset lazily on the next login
// attempt; this sweep keeps the table tidy for accounts that never return.
type CleanupManager struct {
	recovery  RecoveryCleaner
	locks     LockCleaner
	logger    *slog.Logger
	interval  time.Duration
	lockGrace time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager.
func NewCleanupManager(
	recovery RecoveryCleaner,
	locks LockCleaner,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		recovery:  recovery,
		locks:     locks,
		logger:    logger,
		interval:  interval,
		lockGrace: 24 * time.Hour,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. Blocks until Stop is called or
// the context is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	codes, err := cm.recovery.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired recovery codes", slog.Any("error", err))
	} else if codes > 0 {
		cm.logger.Info("purged expired recovery codes", slog.Int64("rows_deleted", codes))
	}

	locks, err := cm.locks.ClearLapsedLocks(cleanupCtx, cm.lockGrace)
	if err != nil {
		cm.logger.Error("failed to clear lapsed account locks", slog.Any("error", err))
	} else if locks > 0 {
		cm.logger.Info("cleared lapsed account locks", slog.Int64("accounts_unlocked", locks))
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
