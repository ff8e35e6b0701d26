package memory

import (
	"context"
	"testing"
	"time"

	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
)

func seedEvent(t *testing.T, store *Store, id string, status entities.EventStatus, attempts int, createdAt time.Time) {
	t.Helper()
	_, err := store.StoreEvent(context.Background(), entities.OutboxEvent{
		ID:            id,
		TenantID:      "tenant-1",
		EventID:       "evt-" + id,
		EventType:     "order.created",
		Payload:       []byte(`{}`),
		Status:        entities.StatusPending,
		NextAttemptAt: createdAt,
		CreatedAt:     createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	if status != entities.StatusPending || attempts != 0 {
		event, _ := store.Get(id)
		event.Status = status
		event.Attempts = attempts
		store.events[id] = event
	}
}

func TestClaimDueOrdersByCreationAndRespectsLimit(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(base)

	seedEvent(t, store, "c", entities.StatusPending, 0, base.Add(3*time.Second))
	seedEvent(t, store, "a", entities.StatusPending, 0, base.Add(1*time.Second))
	seedEvent(t, store, "b", entities.StatusPending, 0, base.Add(2*time.Second))

	claimed, err := store.ClaimDue(context.Background(), 2)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claimed))
	}
	if claimed[0].ID != "a" || claimed[1].ID != "b" {
		t.Fatalf("expected oldest-first claim order, got %s then %s", claimed[0].ID, claimed[1].ID)
	}
	for _, event := range claimed {
		if event.Status != entities.StatusProcessing {
			t.Fatalf("claimed row must be PROCESSING, got %s", event.Status)
		}
		if event.Attempts != 1 {
			t.Fatalf("claim must increment attempts, got %d", event.Attempts)
		}
		if !event.NextAttemptAt.After(base) {
			t.Fatal("claim must push next_attempt_at into the future")
		}
	}
}

func TestClaimDueSkipsIneligibleRows(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{MaxAttempts: 3})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "claimed", entities.StatusProcessing, 1, now.Add(-time.Minute))
	seedEvent(t, store, "done", entities.StatusPublished, 1, now.Add(-time.Minute))
	seedEvent(t, store, "dead", entities.StatusDeadLetter, 3, now.Add(-time.Minute))
	seedEvent(t, store, "exhausted", entities.StatusFailed, 3, now.Add(-time.Minute))

	// A failed row scheduled in the future is not yet due.
	seedEvent(t, store, "later", entities.StatusFailed, 1, now.Add(-time.Minute))
	event, _ := store.Get("later")
	event.NextAttemptAt = now.Add(time.Hour)
	store.events["later"] = event

	claimed, err := store.ClaimDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("expected nothing claimable, got %d rows", len(claimed))
	}
}

func TestClaimDueRetriesDueFailedRows(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{MaxAttempts: 3})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "retry", entities.StatusFailed, 1, now.Add(-time.Minute))
	event, _ := store.Get("retry")
	event.NextAttemptAt = now.Add(-time.Second)
	store.events["retry"] = event

	claimed, err := store.ClaimDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != "retry" {
		t.Fatalf("expected the due failed row to be claimed, got %v", claimed)
	}
	if claimed[0].Attempts != 2 {
		t.Fatalf("expected attempts 2, got %d", claimed[0].Attempts)
	}
}

func TestConcurrentClaimsAreDisjoint(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	for i := 0; i < 80; i++ {
		seedEvent(t, store, fmtID(i), entities.StatusPending, 0, now.Add(time.Duration(i)*time.Millisecond))
	}

	type claimResult struct {
		ids []string
		err error
	}
	results := make(chan claimResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			claimed, err := store.ClaimDue(context.Background(), 50)
			ids := make([]string, 0, len(claimed))
			for _, event := range claimed {
				ids = append(ids, event.ID)
			}
			results <- claimResult{ids: ids, err: err}
		}()
	}

	seen := make(map[string]bool)
	total := 0
	for i := 0; i < 2; i++ {
		result := <-results
		if result.err != nil {
			t.Fatalf("claim failed: %v", result.err)
		}
		for _, id := range result.ids {
			if seen[id] {
				t.Fatalf("row %s claimed twice", id)
			}
			seen[id] = true
		}
		total += len(result.ids)
	}
	if total != 80 {
		t.Fatalf("expected 80 rows claimed across both claimers, got %d", total)
	}
}

func TestMarkTransitionsRequireProcessing(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "pending", entities.StatusPending, 0, now)

	if err := store.MarkPublished(context.Background(), "pending", now); err != domainerrors.ErrEventNotClaimed {
		t.Fatalf("expected ErrEventNotClaimed for unclaimed row, got %v", err)
	}
	if err := store.MarkFailed(context.Background(), "missing", "boom", now, now); err != domainerrors.ErrEventNotClaimed {
		t.Fatalf("expected ErrEventNotClaimed for missing row, got %v", err)
	}

	claimed, err := store.ClaimDue(context.Background(), 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim failed: %v (%d rows)", err, len(claimed))
	}
	if err := store.MarkPublished(context.Background(), "pending", now); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	event, _ := store.Get("pending")
	if event.Status != entities.StatusPublished {
		t.Fatalf("expected PUBLISHED, got %s", event.Status)
	}
	if event.PublishedAt == nil || !event.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at %v, got %v", now, event.PublishedAt)
	}
}

func TestTerminalRowsRejectFurtherTransitions(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "done", entities.StatusPending, 0, now)
	if _, err := store.ClaimDue(context.Background(), 1); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.MarkPublished(context.Background(), "done", now); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}

	if err := store.MarkPublished(context.Background(), "done", now); err != domainerrors.ErrEventNotClaimed {
		t.Fatalf("expected published row to reject re-publish, got %v", err)
	}
	if err := store.MarkFailed(context.Background(), "done", "boom", now, now.Add(time.Minute)); err != domainerrors.ErrEventNotClaimed {
		t.Fatalf("expected published row to reject failure, got %v", err)
	}
	if err := store.MarkDeadLetter(context.Background(), "done", "boom", now); err != domainerrors.ErrEventNotClaimed {
		t.Fatalf("expected published row to reject dead-letter, got %v", err)
	}
}

func TestRequeueStuckSplitsByRetryBudget(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{MaxAttempts: 3})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "stuck-retry", entities.StatusProcessing, 1, now.Add(-time.Hour))
	seedEvent(t, store, "stuck-dead", entities.StatusProcessing, 3, now.Add(-time.Hour))
	seedEvent(t, store, "fresh", entities.StatusProcessing, 1, now.Add(-time.Hour))

	for _, id := range []string{"stuck-retry", "stuck-dead"} {
		event, _ := store.Get(id)
		event.NextAttemptAt = now.Add(-time.Minute)
		store.events[id] = event
	}
	event, _ := store.Get("fresh")
	event.NextAttemptAt = now.Add(time.Minute)
	store.events["fresh"] = event

	result, err := store.RequeueStuck(context.Background(), 100, now)
	if err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if result.Requeued != 1 || result.DeadLettered != 1 {
		t.Fatalf("expected 1 requeued and 1 dead-lettered, got %+v", result)
	}

	requeued, _ := store.Get("stuck-retry")
	if requeued.Status != entities.StatusFailed {
		t.Fatalf("expected FAILED, got %s", requeued.Status)
	}
	dead, _ := store.Get("stuck-dead")
	if dead.Status != entities.StatusDeadLetter {
		t.Fatalf("expected DEAD_LETTER, got %s", dead.Status)
	}
	untouched, _ := store.Get("fresh")
	if untouched.Status != entities.StatusProcessing {
		t.Fatalf("expected fresh claim untouched, got %s", untouched.Status)
	}
}

func TestDeleteOldPublishedLeavesOtherStatuses(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	now := time.Date(2026, time.March, 31, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	old := now.AddDate(0, 0, -40)
	seedEvent(t, store, "old-published", entities.StatusPublished, 1, old)
	seedEvent(t, store, "old-dead", entities.StatusDeadLetter, 5, old)
	seedEvent(t, store, "old-failed", entities.StatusFailed, 1, old)
	seedEvent(t, store, "new-published", entities.StatusPublished, 1, now.AddDate(0, 0, -1))

	deleted, err := store.DeleteOldPublished(context.Background(), now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	if _, ok := store.Get("old-published"); ok {
		t.Fatal("expected old published row deleted")
	}
	for _, id := range []string{"old-dead", "old-failed", "new-published"} {
		if _, ok := store.Get(id); !ok {
			t.Fatalf("expected %s to survive cleanup", id)
		}
	}
}

func TestEventStatsCountsStuckProcessing(t *testing.T) {
	store := NewStore(entities.DeliveryPolicy{})
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedEvent(t, store, "p1", entities.StatusPending, 0, now)
	seedEvent(t, store, "f1", entities.StatusFailed, 1, now)
	seedEvent(t, store, "d1", entities.StatusDeadLetter, 5, now)
	seedEvent(t, store, "proc-live", entities.StatusProcessing, 1, now)
	seedEvent(t, store, "proc-stuck", entities.StatusProcessing, 1, now)

	live, _ := store.Get("proc-live")
	live.NextAttemptAt = now.Add(time.Minute)
	store.events["proc-live"] = live
	stuck, _ := store.Get("proc-stuck")
	stuck.NextAttemptAt = now.Add(-time.Minute)
	store.events["proc-stuck"] = stuck

	stats, err := store.EventStats(context.Background(), now)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Failed != 1 || stats.DeadLetter != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Processing != 2 {
		t.Fatalf("expected 2 processing, got %d", stats.Processing)
	}
	if stats.StuckProcessing != 1 {
		t.Fatalf("expected 1 stuck, got %d", stats.StuckProcessing)
	}
}

func fmtID(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}
