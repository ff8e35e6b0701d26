package ports

import (
	"context"
	"time"

	"herald/contexts/eventing/usage-metering/domain/entities"
)

// RollupSummary reports one aggregation pass.
type RollupSummary struct {
	Rollups       int
	RecordsFolded int64
}

// UsageRepository persists raw samples and performs the windowed aggregation.
// RollupDue must be transactional: folding records, writing rollups, and
// enqueueing the completion event either all commit or none do.
type UsageRepository interface {
	StoreRecord(ctx context.Context, record entities.UsageRecord) error
	RollupDue(ctx context.Context, now time.Time) (RollupSummary, error)
	ListRollups(ctx context.Context, tenantID string, limit int) ([]entities.UsageRollup, error)
}

// JobLock matches the fleet-wide single-runner primitive used by the
// periodic jobs.
type JobLock interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
