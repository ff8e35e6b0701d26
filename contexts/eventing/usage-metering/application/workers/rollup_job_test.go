package workers

import (
	"context"
	"testing"
	"time"

	outboxmemory "herald/contexts/eventing/outbox-engine/adapters/memory"
	outboxcommands "herald/contexts/eventing/outbox-engine/application/commands"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	"herald/contexts/eventing/usage-metering/adapters/memory"
	"herald/contexts/eventing/usage-metering/application/commands"
)

func newRollupFixture(t *testing.T) (RollupJob, *memory.Store, *outboxmemory.Store) {
	t.Helper()
	outbox := outboxmemory.NewStore(entities.DeliveryPolicy{})
	enqueue := &outboxcommands.StoreEventUseCase{
		Store:       outbox,
		Clock:       outbox,
		IDGenerator: outbox,
	}
	store := memory.NewStore(enqueue)
	job := RollupJob{
		Repository: store,
		Lock:       outboxmemory.NewJobLock(),
		Clock:      store,
	}
	return job, store, outbox
}

func recordAt(t *testing.T, store *memory.Store, tenant, meter string, quantity int64, at time.Time) {
	t.Helper()
	uc := commands.RecordUsageUseCase{
		Repository:  store,
		Clock:       store,
		IDGenerator: store,
	}
	_, err := uc.Execute(context.Background(), commands.RecordUsageCommand{
		TenantID:   tenant,
		Meter:      meter,
		Quantity:   quantity,
		RecordedAt: at,
	})
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}
}

func TestRollupFoldsElapsedWindows(t *testing.T) {
	job, store, outbox := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)

	window := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	recordAt(t, store, "tenant-1", "api_calls", 120, window.Add(5*time.Minute))
	recordAt(t, store, "tenant-1", "api_calls", 80, window.Add(40*time.Minute))
	recordAt(t, store, "tenant-1", "api_calls", 7, now.Add(-10*time.Minute))

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("rollup run failed: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected rollup to run, got skipped")
	}
	if result.Summary.Rollups != 1 || result.Summary.RecordsFolded != 2 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	rollups, err := store.ListRollups(context.Background(), "tenant-1", 10)
	if err != nil {
		t.Fatalf("list rollups: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected 1 rollup, got %d", len(rollups))
	}
	if rollups[0].TotalQuantity != 200 || rollups[0].RecordCount != 2 {
		t.Fatalf("unexpected rollup totals: %+v", rollups[0])
	}
	if !rollups[0].WindowStart.Equal(window) {
		t.Fatalf("expected window start %v, got %v", window, rollups[0].WindowStart)
	}

	if outbox.Count() != 1 {
		t.Fatalf("expected 1 outbox event, got %d", outbox.Count())
	}
	claimed, err := outbox.ClaimDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim outbox events: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimable event, got %d", len(claimed))
	}
	if claimed[0].EventType != "usage.rollup.completed" || claimed[0].TenantID != "tenant-1" {
		t.Fatalf("unexpected outbox event: %+v", claimed[0])
	}
}

func TestRollupLeavesCurrentWindowOpen(t *testing.T) {
	job, store, _ := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)

	recordAt(t, store, "tenant-1", "api_calls", 7, now.Add(-10*time.Minute))

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("rollup run failed: %v", err)
	}
	if result.Summary.Rollups != 0 || result.Summary.RecordsFolded != 0 {
		t.Fatalf("expected open window untouched, got %+v", result.Summary)
	}
}

func TestRollupSecondPassIsIdempotent(t *testing.T) {
	job, store, outbox := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)

	recordAt(t, store, "tenant-1", "api_calls", 50, now.Add(-2*time.Hour))
	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("first rollup run failed: %v", err)
	}

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second rollup run failed: %v", err)
	}
	if result.Summary.Rollups != 0 || result.Summary.RecordsFolded != 0 {
		t.Fatalf("expected no new work on second pass, got %+v", result.Summary)
	}
	if outbox.Count() != 1 {
		t.Fatalf("expected 1 outbox event after two passes, got %d", outbox.Count())
	}
}

func TestLateRecordsMergeIntoClosedWindow(t *testing.T) {
	job, store, outbox := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)

	window := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	recordAt(t, store, "tenant-1", "api_calls", 100, window.Add(15*time.Minute))
	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("first rollup run failed: %v", err)
	}

	recordAt(t, store, "tenant-1", "api_calls", 25, window.Add(55*time.Minute))
	store.SetNow(now.Add(time.Minute))
	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("late rollup run failed: %v", err)
	}
	if result.Summary.Rollups != 1 || result.Summary.RecordsFolded != 1 {
		t.Fatalf("unexpected late summary: %+v", result.Summary)
	}

	rollups, err := store.ListRollups(context.Background(), "tenant-1", 10)
	if err != nil {
		t.Fatalf("list rollups: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected the late record merged into 1 rollup, got %d", len(rollups))
	}
	if rollups[0].TotalQuantity != 125 || rollups[0].RecordCount != 2 {
		t.Fatalf("unexpected merged totals: %+v", rollups[0])
	}
	if outbox.Count() != 2 {
		t.Fatalf("expected a fresh completion event per pass, got %d", outbox.Count())
	}
}

func TestSampleStoredAfterItsWindowPassIsNeverLost(t *testing.T) {
	job, store, _ := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 0, 5, 0, time.UTC)
	store.SetNow(now)

	window := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	recordAt(t, store, "tenant-1", "api_calls", 100, window.Add(10*time.Minute))
	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("first rollup run failed: %v", err)
	}

	// A sample timestamped 10:59:59 lands only after the 11:00 pass closed
	// the window. It must stay unfolded and count on the next pass.
	recordAt(t, store, "tenant-1", "api_calls", 40, window.Add(59*time.Minute+59*time.Second))
	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second rollup run failed: %v", err)
	}
	if result.Summary.RecordsFolded != 1 {
		t.Fatalf("expected the straggler folded, got %+v", result.Summary)
	}

	rollups, err := store.ListRollups(context.Background(), "tenant-1", 10)
	if err != nil {
		t.Fatalf("list rollups: %v", err)
	}
	if len(rollups) != 1 || rollups[0].TotalQuantity != 140 || rollups[0].RecordCount != 2 {
		t.Fatalf("expected no quantity lost across passes, got %+v", rollups)
	}
}

func TestRollupGroupsByTenantAndMeter(t *testing.T) {
	job, store, _ := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)

	window := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	recordAt(t, store, "tenant-1", "api_calls", 10, window.Add(time.Minute))
	recordAt(t, store, "tenant-1", "storage_gb", 3, window.Add(time.Minute))
	recordAt(t, store, "tenant-2", "api_calls", 4, window.Add(time.Minute))

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("rollup run failed: %v", err)
	}
	if result.Summary.Rollups != 3 || result.Summary.RecordsFolded != 3 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	mine, err := store.ListRollups(context.Background(), "tenant-1", 10)
	if err != nil {
		t.Fatalf("list rollups: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 rollups for tenant-1, got %d", len(mine))
	}
}

type busyLock struct{}

func (busyLock) WithLock(context.Context, string, func(context.Context) error) (bool, error) {
	return false, nil
}

func TestRollupSkipsWhenLockHeld(t *testing.T) {
	job, store, outbox := newRollupFixture(t)
	now := time.Date(2026, time.March, 1, 11, 30, 0, 0, time.UTC)
	store.SetNow(now)
	job.Lock = busyLock{}

	recordAt(t, store, "tenant-1", "api_calls", 10, now.Add(-2*time.Hour))

	result, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("rollup run failed: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected run to report skipped while another holder owns the lock")
	}
	if outbox.Count() != 0 {
		t.Fatalf("expected no outbox events on skip, got %d", outbox.Count())
	}
}
