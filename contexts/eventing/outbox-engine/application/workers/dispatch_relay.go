package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "herald/contexts/eventing/outbox-engine/application"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

// Lock keys shared by the periodic fleet jobs. One instance per tick runs
// each job; the rest skip silently.
const (
	LockDispatchTick  = "outbox-dispatch-tick"
	LockStuckRecovery = "outbox-stuck-recovery"
	LockRetention     = "outbox-retention-cleanup"
)

const defaultBatchSize = 50

// DispatchResult captures one dispatch cycle outcome.
type DispatchResult struct {
	Skipped            bool
	Claimed            int
	Published          int
	Failed             int
	DeadLettered       int
	OutcomeWriteFailed int
}

// DispatchRelay claims due outbox rows and drives them through the Transport.
// Every claimed row gets exactly one outcome call: MarkPublished, MarkFailed,
// or MarkDeadLetter. If the process dies in between, the next_attempt_at
// pushed forward at claim time makes the row recoverable.
type DispatchRelay struct {
	Repository     ports.EventRepository
	Transport      ports.Transport
	Lock           ports.JobLock
	Clock          ports.Clock
	Policy         entities.DeliveryPolicy
	BatchSize      int
	PublishTimeout time.Duration
	Logger         *slog.Logger
}

// RunOnce executes one lock-protected dispatch tick. Lock contention is not
// an error: the result reports Skipped and nothing else happens.
func (r DispatchRelay) RunOnce(ctx context.Context) (DispatchResult, error) {
	if r.Repository == nil {
		return DispatchResult{}, domainerrors.ErrRepositoryRequired
	}
	if r.Transport == nil {
		return DispatchResult{}, domainerrors.ErrTransportRequired
	}

	logger := application.ResolveLogger(r.Logger)

	var result DispatchResult
	acquired, err := r.Lock.WithLock(ctx, LockDispatchTick, func(ctx context.Context) error {
		var dispatchErr error
		result, dispatchErr = r.dispatch(ctx, logger)
		return dispatchErr
	})
	if err != nil {
		return DispatchResult{}, err
	}
	if !acquired {
		logger.Debug("dispatch tick held elsewhere",
			"event", "outbox_dispatch_skipped",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"lock_key", LockDispatchTick,
		)
		return DispatchResult{Skipped: true}, nil
	}
	return result, nil
}

func (r DispatchRelay) dispatch(ctx context.Context, logger *slog.Logger) (DispatchResult, error) {
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}
	policy := r.Policy.Normalized()

	claimed, err := r.Repository.ClaimDue(ctx, limit)
	if err != nil {
		logger.Error("outbox claim failed",
			"event", "outbox_claim_failed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return DispatchResult{}, fmt.Errorf("claim due events: %w", err)
	}
	if len(claimed) == 0 {
		return DispatchResult{}, nil
	}

	result := DispatchResult{Claimed: len(claimed)}
	for _, event := range claimed {
		if ctx.Err() != nil {
			// Remaining claims recover via their pushed-forward next_attempt_at.
			break
		}
		r.deliver(ctx, logger, policy, event, &result)
	}

	logger.Info("outbox dispatch cycle completed",
		"event", "outbox_dispatch_completed",
		"module", "eventing/outbox-engine",
		"layer", "worker",
		"claimed", result.Claimed,
		"published", result.Published,
		"failed", result.Failed,
		"dead_lettered", result.DeadLettered,
		"outcome_write_failed", result.OutcomeWriteFailed,
	)
	return result, nil
}

func (r DispatchRelay) deliver(
	ctx context.Context,
	logger *slog.Logger,
	policy entities.DeliveryPolicy,
	event entities.OutboxEvent,
	result *DispatchResult,
) {
	publishErr := r.publish(ctx, event)
	now := r.Clock.Now().UTC()

	if publishErr == nil {
		if err := r.Repository.MarkPublished(ctx, event.ID, now); err != nil {
			// Published to the transport but the terminal state was lost; the
			// row will be redelivered. Consumers must stay idempotent.
			logger.Error("outbox published but outcome write failed",
				"event", "outbox_mark_published_failed",
				"module", "eventing/outbox-engine",
				"layer", "worker",
				"outbox_id", event.ID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			result.OutcomeWriteFailed++
			return
		}
		result.Published++
		return
	}

	errText := publishErr.Error()
	if event.Attempts >= policy.MaxAttempts {
		if err := r.Repository.MarkDeadLetter(ctx, event.ID, errText, now); err != nil {
			logger.Error("outbox dead-letter write failed",
				"event", "outbox_mark_dead_letter_failed",
				"module", "eventing/outbox-engine",
				"layer", "worker",
				"outbox_id", event.ID,
				"error", err.Error(),
			)
			result.OutcomeWriteFailed++
			return
		}
		logger.Warn("outbox event dead-lettered",
			"event", "outbox_event_dead_lettered",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"outbox_id", event.ID,
			"tenant_id", event.TenantID,
			"event_type", event.EventType,
			"attempts", event.Attempts,
			"error", errText,
		)
		result.DeadLettered++
		return
	}

	if err := r.Repository.MarkFailed(ctx, event.ID, errText, now, now.Add(policy.RetryBackoff)); err != nil {
		logger.Error("outbox failure write failed",
			"event", "outbox_mark_failed_failed",
			"module", "eventing/outbox-engine",
			"layer", "worker",
			"outbox_id", event.ID,
			"error", err.Error(),
		)
		result.OutcomeWriteFailed++
		return
	}
	logger.Warn("outbox delivery failed, retry scheduled",
		"event", "outbox_delivery_failed",
		"module", "eventing/outbox-engine",
		"layer", "worker",
		"outbox_id", event.ID,
		"event_type", event.EventType,
		"attempts", event.Attempts,
		"error", errText,
	)
	result.Failed++
}

// publish bounds the transport call with the configured timeout and converts
// a panicking transport into a delivery failure. A hung or throwing transport
// never leaves a row without an outcome.
func (r DispatchRelay) publish(ctx context.Context, event entities.OutboxEvent) (err error) {
	timeout := r.PublishTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	publishCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("transport panic: %v", recovered)
		}
	}()
	return r.Transport.Publish(publishCtx, event)
}
