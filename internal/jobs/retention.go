package jobs

import (
	"context"
	"time"

	"medassist/internal/config"
	"medassist/internal/metrics"
)

// AuditPruner deletes audit rows older than a cutoff.
type AuditPruner interface {
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionStats captures the number of records deleted by TTL cleanup.
type RetentionStats struct {
	AuditDeleted int64 `json:"auditDeleted"`
}

// CleanupExpiredData deletes audit rows older than retention.auditDays.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st AuditPruner, now time.Time) (RetentionStats, error) {
	var stats RetentionStats
	if cfg.Retention.AuditDays <= 0 {
		return stats, nil
	}

	cutoff := now.UTC().AddDate(0, 0, -cfg.Retention.AuditDays)
	n, err := st.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	if n > 0 {
		stats.AuditDeleted = n
		metrics.RecordRetentionAudit(n)
	}
	return stats, nil
}
