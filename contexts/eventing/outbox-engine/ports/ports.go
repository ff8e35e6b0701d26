package ports

import (
	"context"
	"time"

	"herald/contexts/eventing/outbox-engine/domain/entities"
)

// StoreOutcome distinguishes a fresh enqueue from a deduplicated no-op.
// Duplicate submissions are a success, never an error.
type StoreOutcome string

const (
	OutcomeStored    StoreOutcome = "stored"
	OutcomeDuplicate StoreOutcome = "duplicate"
)

// EventStore appends outbox rows. Implementations must be bindable to the
// caller's open transaction so the row commits or rolls back with the
// business mutation that produced it.
type EventStore interface {
	StoreEvent(ctx context.Context, event entities.OutboxEvent) (StoreOutcome, error)
}

// EventStats backs backlog gauges. StuckProcessing counts rows left
// PROCESSING past their safety window, the signature of a lost outcome write.
type EventStats struct {
	Pending         int64
	Processing      int64
	Published       int64
	Failed          int64
	DeadLetter      int64
	StuckProcessing int64
}

// RecoveryResult reports what a stuck-row sweep did.
type RecoveryResult struct {
	Requeued     int64
	DeadLettered int64
}

// EventRepository is the storage contract for claims, outcome transitions,
// and the observability surface. All status transitions are atomic
// conditional updates; there is no read-then-write window.
type EventRepository interface {
	// ClaimDue atomically selects up to limit due rows, marks them
	// PROCESSING, increments attempts, and pushes next_attempt_at forward by
	// the claim safety backoff. Rows locked by a concurrent claim are
	// skipped, never waited on. An empty result is a normal outcome.
	ClaimDue(ctx context.Context, limit int) ([]entities.OutboxEvent, error)

	// MarkPublished terminalizes a claimed row. Fails with ErrEventNotClaimed
	// if the row is no longer PROCESSING.
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error

	// MarkFailed schedules a claimed row for retry at nextAttemptAt and
	// records the failure reason. failedAt stamps the transition time.
	MarkFailed(ctx context.Context, id string, errText string, failedAt, nextAttemptAt time.Time) error

	// MarkDeadLetter terminalizes a claimed row after its retry budget is
	// exhausted. Dead-lettered rows are excluded from all future claims and
	// are never auto-deleted.
	MarkDeadLetter(ctx context.Context, id string, errText string, deadLetteredAt time.Time) error

	// RequeueStuck returns PROCESSING rows whose safety window elapsed to
	// FAILED (or DEAD_LETTER when attempts are exhausted) so a crashed
	// instance's claims become claimable again.
	RequeueStuck(ctx context.Context, limit int, now time.Time) (RecoveryResult, error)

	EventStats(ctx context.Context, now time.Time) (EventStats, error)
	ListFailed(ctx context.Context, limit int) ([]entities.OutboxEvent, error)
	ListDeadLetter(ctx context.Context, limit int) ([]entities.OutboxEvent, error)
	ListByCorrelation(ctx context.Context, tenantID, correlationID string) ([]entities.OutboxEvent, error)

	// DeleteOldPublished removes PUBLISHED rows created before the cutoff and
	// returns the count deleted. No other status is ever touched.
	DeleteOldPublished(ctx context.Context, olderThan time.Time) (int64, error)
}

// Transport delivers one event to the outside world. Implementations must be
// safe to call more than once for the same event; the engine guarantees
// exactly-once enqueue and at-least-once delivery, nothing stronger.
type Transport interface {
	Publish(ctx context.Context, event entities.OutboxEvent) error
}

// JobLock is the fleet-wide single-runner primitive. WithLock returns
// (false, nil) without running fn when another holder has the key; the lock
// is always released when fn returns, even on panic.
type JobLock interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error)
}

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts storage id generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
