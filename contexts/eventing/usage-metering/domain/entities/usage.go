package entities

import (
	"strings"
	"time"

	domainerrors "herald/contexts/eventing/usage-metering/domain/errors"
)

// RollupWindow is the aggregation granularity. Records are grouped per
// tenant and meter into hour-aligned windows.
const RollupWindow = time.Hour

// UsageRecord is one raw metering sample. Records accumulate until the
// rollup job folds every fully elapsed window into a UsageRollup.
type UsageRecord struct {
	ID         string
	TenantID   string
	Meter      string
	Quantity   int64
	RecordedAt time.Time
	RolledUp   bool
}

func (r UsageRecord) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return domainerrors.ErrTenantIDRequired
	}
	if strings.TrimSpace(r.Meter) == "" {
		return domainerrors.ErrMeterRequired
	}
	if r.Quantity <= 0 {
		return domainerrors.ErrQuantityInvalid
	}
	return nil
}

// WindowStart returns the hour-aligned window this record belongs to.
func (r UsageRecord) WindowStart() time.Time {
	return r.RecordedAt.UTC().Truncate(RollupWindow)
}

// UsageRollup is the hourly aggregate for one tenant and meter. A window is
// closed once rolled up; late records for a closed window merge into the
// existing rollup instead of creating a second row.
type UsageRollup struct {
	ID            string
	TenantID      string
	Meter         string
	WindowStart   time.Time
	WindowEnd     time.Time
	TotalQuantity int64
	RecordCount   int64
	CreatedAt     time.Time
}
