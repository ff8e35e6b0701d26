package workers

import (
	"context"
	"log/slog"

	application "herald/contexts/eventing/outbox-engine/application"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

const defaultRecoveryBatch = 200

// StuckRecovery sweeps rows left PROCESSING past their safety window back to
// a claimable state. This is the crash-recovery half of the claim contract:
// an instance that died mid-dispatch leaves rows whose next_attempt_at was
// already pushed forward, and once that window passes they belong to no one.
// Runs on worker start and then periodically under its own lock.
type StuckRecovery struct {
	Repository ports.EventRepository
	Lock       ports.JobLock
	Clock      ports.Clock
	BatchSize  int
	Logger     *slog.Logger
}

func (r StuckRecovery) RunOnce(ctx context.Context) (ports.RecoveryResult, error) {
	if r.Repository == nil {
		return ports.RecoveryResult{}, domainerrors.ErrRepositoryRequired
	}
	logger := application.ResolveLogger(r.Logger)

	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultRecoveryBatch
	}

	var result ports.RecoveryResult
	acquired, err := r.Lock.WithLock(ctx, LockStuckRecovery, func(ctx context.Context) error {
		swept, sweepErr := r.Repository.RequeueStuck(ctx, limit, r.Clock.Now().UTC())
		if sweepErr != nil {
			return sweepErr
		}
		result = swept
		return nil
	})
	if err != nil {
		logger.Error("outbox stuck recovery failed",
			"event", "outbox_recovery_failed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return ports.RecoveryResult{}, err
	}
	if !acquired {
		logger.Debug("stuck recovery held elsewhere",
			"event", "outbox_recovery_skipped",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"lock_key", LockStuckRecovery,
		)
		return ports.RecoveryResult{}, nil
	}

	if result.Requeued > 0 || result.DeadLettered > 0 {
		logger.Info("outbox stuck rows recovered",
			"event", "outbox_recovery_completed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"requeued", result.Requeued,
			"dead_lettered", result.DeadLettered,
		)
	}
	return result, nil
}
