package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger deletes rows created before cutoff and reports how many went
type Purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionTarget is one table swept by the cleanup manager
type RetentionTarget struct {
	Name      string
	Store     Purger
	Retention time.Duration
}

// CleanupManager periodically removes login attempts and renewal tokens that
// are past their retention
type CleanupManager struct {
	targets  []RetentionTarget
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, targets ...RetentionTarget) *CleanupManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupManager{
		targets:  targets,
		logger:   logger,
		interval: interval,
		timeout:  30 * time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// SetClock replaces the time source. Intended for tests.
func (cm *CleanupManager) SetClock(now func() time.Time) {
	cm.now = now
}

// Start runs a sweep immediately and then every interval until ctx is
// cancelled or Stop is called
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce sweeps every target. A failing target does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	now := cm.now()
	for _, target := range cm.targets {
		cm.sweep(ctx, target, now.Add(-target.Retention))
	}
}

func (cm *CleanupManager) sweep(ctx context.Context, target RetentionTarget, cutoff time.Time) {
	sweepCtx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	rowsDeleted, err := target.Store.DeleteOlderThan(sweepCtx, cutoff)
	if err != nil {
		cm.logger.Error("retention cleanup failed",
			slog.String("target", target.Name),
			slog.Any("error", err),
		)
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("retention cleanup completed",
			slog.String("target", target.Name),
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff),
		)
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
