package workers

import (
	"context"
	"log/slog"
	"time"

	application "herald/contexts/eventing/outbox-engine/application"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

const defaultRetentionDays = 30

// RetentionCleanup deletes PUBLISHED rows past the retention cutoff. Safe to
// run repeatedly and concurrently since it only targets terminal, delivered
// rows; the lock just avoids duplicate work across the fleet. FAILED,
// PENDING, and DEAD_LETTER rows are never touched regardless of age.
type RetentionCleanup struct {
	Repository    ports.EventRepository
	Lock          ports.JobLock
	Clock         ports.Clock
	RetentionDays int
	Logger        *slog.Logger
}

func (r RetentionCleanup) RunOnce(ctx context.Context) (int64, error) {
	if r.Repository == nil {
		return 0, domainerrors.ErrRepositoryRequired
	}
	logger := application.ResolveLogger(r.Logger)

	days := r.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	cutoff := r.Clock.Now().UTC().AddDate(0, 0, -days)

	var deleted int64
	acquired, err := r.Lock.WithLock(ctx, LockRetention, func(ctx context.Context) error {
		count, cleanupErr := r.Repository.DeleteOldPublished(ctx, cutoff)
		if cleanupErr != nil {
			return cleanupErr
		}
		deleted = count
		return nil
	})
	if err != nil {
		logger.Error("outbox retention cleanup failed",
			"event", "outbox_cleanup_failed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if !acquired {
		return 0, nil
	}

	if deleted > 0 {
		logger.Info("outbox retention cleanup completed",
			"event", "outbox_cleanup_completed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return deleted, nil
}
