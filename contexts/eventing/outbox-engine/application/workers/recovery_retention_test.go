package workers

import (
	"context"
	"testing"
	"time"

	"herald/contexts/eventing/outbox-engine/adapters/memory"
	"herald/contexts/eventing/outbox-engine/domain/entities"
)

func TestStuckRecoveryRequeuesExpiredClaims(t *testing.T) {
	policy := entities.DeliveryPolicy{MaxAttempts: 2, ClaimBackoff: time.Minute}.Normalized()
	store := memory.NewStore(policy)
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedPending(t, store, "a", now.Add(-time.Second))
	claimed, err := store.ClaimDue(context.Background(), 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim failed: %v (%d rows)", err, len(claimed))
	}

	recovery := StuckRecovery{
		Repository: store,
		Lock:       memory.NewJobLock(),
		Clock:      store,
	}

	// Within the safety window the claim is considered live.
	result, err := recovery.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if result.Requeued != 0 || result.DeadLettered != 0 {
		t.Fatalf("expected live claim untouched, got %+v", result)
	}

	store.Advance(2 * time.Minute)
	result, err = recovery.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if result.Requeued != 1 || result.DeadLettered != 0 {
		t.Fatalf("expected 1 requeued, got %+v", result)
	}

	event, _ := store.Get("a")
	if event.Status != entities.StatusFailed {
		t.Fatalf("expected FAILED after requeue, got %s", event.Status)
	}

	// The requeued row is claimable again.
	claimed, err = store.ClaimDue(context.Background(), 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("expected requeued row claimable, got %v (%d rows)", err, len(claimed))
	}
}

func TestStuckRecoveryDeadLettersExhaustedClaims(t *testing.T) {
	policy := entities.DeliveryPolicy{MaxAttempts: 1, ClaimBackoff: time.Minute}.Normalized()
	store := memory.NewStore(policy)
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)

	seedPending(t, store, "a", now.Add(-time.Second))
	if _, err := store.ClaimDue(context.Background(), 10); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	store.Advance(2 * time.Minute)
	recovery := StuckRecovery{
		Repository: store,
		Lock:       memory.NewJobLock(),
		Clock:      store,
	}
	result, err := recovery.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("recovery failed: %v", err)
	}
	if result.DeadLettered != 1 {
		t.Fatalf("expected 1 dead-lettered, got %+v", result)
	}

	event, _ := store.Get("a")
	if event.Status != entities.StatusDeadLetter {
		t.Fatalf("expected DEAD_LETTER, got %s", event.Status)
	}
}

func TestRetentionCleanupDeletesOnlyOldPublished(t *testing.T) {
	policy := entities.DeliveryPolicy{}.Normalized()
	store := memory.NewStore(policy)
	now := time.Date(2026, time.March, 31, 10, 0, 0, 0, time.UTC)
	store.SetNow(now)
	transport := &scriptedTransport{}
	relay := newTestRelay(store, transport, policy)

	seedPending(t, store, "old", now.AddDate(0, 0, -40))
	seedPending(t, store, "recent", now.AddDate(0, 0, -1))
	if _, err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	cleanup := RetentionCleanup{
		Repository:    store,
		Lock:          memory.NewJobLock(),
		Clock:         store,
		RetentionDays: 30,
	}
	deleted, err := cleanup.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deletion, got %d", deleted)
	}
	if _, ok := store.Get("old"); ok {
		t.Fatal("expected old published row deleted")
	}
	if _, ok := store.Get("recent"); !ok {
		t.Fatal("expected recent published row kept")
	}
}
