package workers

import (
	"context"
	"log/slog"

	application "herald/contexts/eventing/usage-metering/application"
	domainerrors "herald/contexts/eventing/usage-metering/domain/errors"
	"herald/contexts/eventing/usage-metering/ports"
)

const LockUsageRollup = "usage-aggregation"

// RollupJob folds raw usage records into hourly rollups. The repository does
// the heavy lifting transactionally; the lock keeps a single instance per
// tick doing it.
type RollupJob struct {
	Repository ports.UsageRepository
	Lock       ports.JobLock
	Clock      ports.Clock
	Logger     *slog.Logger
}

type RollupResult struct {
	Skipped bool
	Summary ports.RollupSummary
}

func (r RollupJob) RunOnce(ctx context.Context) (RollupResult, error) {
	if r.Repository == nil {
		return RollupResult{}, domainerrors.ErrRepositoryRequired
	}
	logger := application.ResolveLogger(r.Logger)

	var summary ports.RollupSummary
	acquired, err := r.Lock.WithLock(ctx, LockUsageRollup, func(ctx context.Context) error {
		var rollupErr error
		summary, rollupErr = r.Repository.RollupDue(ctx, r.Clock.Now().UTC())
		return rollupErr
	})
	if err != nil {
		logger.Error("usage rollup failed",
			"event", "usage_rollup_failed",
			"module", "eventing/usage-metering",
			"layer", "worker",
			"error", err.Error(),
		)
		return RollupResult{}, err
	}
	if !acquired {
		return RollupResult{Skipped: true}, nil
	}

	if summary.Rollups > 0 {
		logger.Info("usage rollup completed",
			"event", "usage_rollup_completed",
			"module", "eventing/usage-metering",
			"layer", "worker",
			"rollups", summary.Rollups,
			"records_folded", summary.RecordsFolded,
		)
	}
	return RollupResult{Summary: summary}, nil
}
