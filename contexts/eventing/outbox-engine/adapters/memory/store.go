package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

// Store is the in-memory adapter used by tests and local development. It
// mirrors the Postgres adapter's semantics: claim atomicity under one mutex,
// transitions checked against the domain state machine, and the same
// duplicate-detection rules.
type Store struct {
	mu sync.Mutex

	events map[string]entities.OutboxEvent
	policy entities.DeliveryPolicy

	now    time.Time
	nextID int
}

func NewStore(policy entities.DeliveryPolicy) *Store {
	return &Store{
		events: make(map[string]entities.OutboxEvent),
		policy: policy.Normalized(),
		now:    time.Now().UTC(),
	}
}

// SetNow pins the clock for deterministic tests.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

// Advance moves the pinned clock forward.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("event-%04d", s.nextID), nil
}

// Get returns a stored event by storage id.
func (s *Store) Get(id string) (entities.OutboxEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	return event, ok
}

// Count returns the number of persisted rows.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) StoreEvent(_ context.Context, event entities.OutboxEvent) (ports.StoreOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(event.IdempotencyKey)
	for _, existing := range s.events {
		if key != "" && existing.IdempotencyKey == key {
			return ports.OutcomeDuplicate, nil
		}
		if existing.EventID == event.EventID && existing.EventType == event.EventType {
			return ports.OutcomeDuplicate, nil
		}
	}

	s.events[event.ID] = event
	return ports.OutcomeStored, nil
}

func (s *Store) ClaimDue(_ context.Context, limit int) ([]entities.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	due := make([]entities.OutboxEvent, 0)
	for _, event := range s.events {
		if event.Attempts >= s.policy.MaxAttempts {
			continue
		}
		if !event.Status.CanTransitionTo(entities.StatusProcessing) {
			continue
		}
		if event.Status == entities.StatusFailed && event.NextAttemptAt.After(s.now) {
			continue
		}
		due = append(due, event)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]entities.OutboxEvent, 0, len(due))
	for _, event := range due {
		event.Status = entities.StatusProcessing
		event.Attempts++
		event.NextAttemptAt = s.now.Add(s.policy.ClaimBackoff)
		s.events[event.ID] = event
		claimed = append(claimed, event)
	}
	return claimed, nil
}

func (s *Store) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || !event.Status.CanTransitionTo(entities.StatusPublished) {
		return domainerrors.ErrEventNotClaimed
	}
	published := publishedAt.UTC()
	event.Status = entities.StatusPublished
	event.PublishedAt = &published
	s.events[id] = event
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, errText string, _, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || !event.Status.CanTransitionTo(entities.StatusFailed) {
		return domainerrors.ErrEventNotClaimed
	}
	event.Status = entities.StatusFailed
	event.LastError = errText
	event.NextAttemptAt = nextAttemptAt.UTC()
	s.events[id] = event
	return nil
}

func (s *Store) MarkDeadLetter(_ context.Context, id string, errText string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || !event.Status.CanTransitionTo(entities.StatusDeadLetter) {
		return domainerrors.ErrEventNotClaimed
	}
	event.Status = entities.StatusDeadLetter
	event.LastError = errText
	s.events[id] = event
	return nil
}

func (s *Store) RequeueStuck(_ context.Context, limit int, now time.Time) (ports.RecoveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}
	cutoff := now.UTC()

	var result ports.RecoveryResult
	swept := 0
	for id, event := range s.events {
		if swept >= limit {
			break
		}
		if event.Status != entities.StatusProcessing || event.NextAttemptAt.After(cutoff) {
			continue
		}
		if event.Attempts >= s.policy.MaxAttempts {
			event.Status = entities.StatusDeadLetter
			event.LastError = "processing window elapsed; retry budget exhausted"
			result.DeadLettered++
		} else {
			event.Status = entities.StatusFailed
			event.LastError = "requeued after processing window elapsed"
			result.Requeued++
		}
		s.events[id] = event
		swept++
	}
	return result, nil
}

func (s *Store) EventStats(_ context.Context, now time.Time) (ports.EventStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.UTC()
	var stats ports.EventStats
	for _, event := range s.events {
		switch event.Status {
		case entities.StatusPending:
			stats.Pending++
		case entities.StatusProcessing:
			stats.Processing++
			if !event.NextAttemptAt.After(cutoff) {
				stats.StuckProcessing++
			}
		case entities.StatusPublished:
			stats.Published++
		case entities.StatusFailed:
			stats.Failed++
		case entities.StatusDeadLetter:
			stats.DeadLetter++
		}
	}
	return stats, nil
}

func (s *Store) ListFailed(_ context.Context, limit int) ([]entities.OutboxEvent, error) {
	return s.listByStatus(entities.StatusFailed, limit), nil
}

func (s *Store) ListDeadLetter(_ context.Context, limit int) ([]entities.OutboxEvent, error) {
	return s.listByStatus(entities.StatusDeadLetter, limit), nil
}

func (s *Store) listByStatus(status entities.EventStatus, limit int) []entities.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	items := make([]entities.OutboxEvent, 0)
	for _, event := range s.events {
		if event.Status == status {
			items = append(items, event)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Store) ListByCorrelation(_ context.Context, tenantID, correlationID string) ([]entities.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]entities.OutboxEvent, 0)
	for _, event := range s.events {
		if event.TenantID == tenantID && event.CorrelationID == correlationID {
			items = append(items, event)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) DeleteOldPublished(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := olderThan.UTC()
	var deleted int64
	for id, event := range s.events {
		if event.Status == entities.StatusPublished && event.CreatedAt.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ ports.EventStore = (*Store)(nil)
var _ ports.EventRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
