package jobs

import (
	"context"
	"log/slog"
	"time"

	"medassist/internal/config"
)

// Runner periodically applies retention to the audit log. It runs in the
// worker and all roles.
type Runner struct {
	cfg    *config.Config
	store  AuditPruner
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner constructs a Runner with the given configuration and store.
func NewRunner(cfg *config.Config, st AuditPruner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the cleanup loop in the current goroutine until ctx is done.
// Callers typically run this in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	if !r.cfg.Retention.Enabled {
		r.logger.Info("retention disabled")
		<-ctx.Done()
		return
	}

	interval := time.Duration(r.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup pass and logs its outcome.
func (r *Runner) RunOnce(ctx context.Context) RetentionStats {
	stats, err := CleanupExpiredData(ctx, r.cfg, r.store, r.now())
	if err != nil {
		r.logger.Error("retention_cleanup_failed", "error", err)
		return stats
	}
	if stats.AuditDeleted > 0 {
		r.logger.Info("retention_cleanup", "audit_deleted", stats.AuditDeleted)
	}
	return stats
}
