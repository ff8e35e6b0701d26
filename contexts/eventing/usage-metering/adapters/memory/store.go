package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	outboxcommands "herald/contexts/eventing/outbox-engine/application/commands"
	"herald/contexts/eventing/usage-metering/domain/entities"
	"herald/contexts/eventing/usage-metering/ports"
)

// Store is the in-memory usage adapter for tests and local development. The
// optional outbox use case receives the same rollup-completed events the
// Postgres adapter enqueues transactionally.
type Store struct {
	mu sync.Mutex

	records map[string]entities.UsageRecord
	rollups map[string]entities.UsageRollup
	outbox  *outboxcommands.StoreEventUseCase

	now    time.Time
	nextID int
}

func NewStore(outbox *outboxcommands.StoreEventUseCase) *Store {
	return &Store{
		records: make(map[string]entities.UsageRecord),
		rollups: make(map[string]entities.UsageRollup),
		outbox:  outbox,
		now:     time.Now().UTC(),
	}
}

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
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
	return fmt.Sprintf("usage-%04d", s.nextID), nil
}

func (s *Store) StoreRecord(_ context.Context, record entities.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *Store) RollupDue(ctx context.Context, now time.Time) (ports.RollupSummary, error) {
	s.mu.Lock()
	currentWindow := now.UTC().Truncate(entities.RollupWindow)

	type groupKey struct {
		tenant string
		meter  string
		window time.Time
	}
	groups := make(map[groupKey]*entities.UsageRollup)
	var folded []string
	for id, record := range s.records {
		if record.RolledUp || !record.RecordedAt.Before(currentWindow) {
			continue
		}
		key := groupKey{record.TenantID, record.Meter, record.WindowStart()}
		rollup, ok := groups[key]
		if !ok {
			rollup = &entities.UsageRollup{
				TenantID:    record.TenantID,
				Meter:       record.Meter,
				WindowStart: key.window,
				WindowEnd:   key.window.Add(entities.RollupWindow),
				CreatedAt:   now.UTC(),
			}
			groups[key] = rollup
		}
		rollup.TotalQuantity += record.Quantity
		rollup.RecordCount++
		folded = append(folded, id)
	}

	var summary ports.RollupSummary
	for key, rollup := range groups {
		id := fmt.Sprintf("rollup:%s:%s:%s", key.tenant, key.meter, key.window.Format(time.RFC3339))
		if existing, ok := s.rollups[id]; ok {
			existing.TotalQuantity += rollup.TotalQuantity
			existing.RecordCount += rollup.RecordCount
			s.rollups[id] = existing
		} else {
			rollup.ID = id
			s.rollups[id] = *rollup
		}
		summary.Rollups++
		summary.RecordsFolded += rollup.RecordCount
	}
	for _, id := range folded {
		record := s.records[id]
		record.RolledUp = true
		s.records[id] = record
	}
	outbox := s.outbox
	s.mu.Unlock()

	if outbox != nil {
		for key, rollup := range groups {
			payload, err := json.Marshal(map[string]any{
				"tenant_id":      key.tenant,
				"meter":          key.meter,
				"window_start":   key.window.Format(time.RFC3339),
				"window_end":     key.window.Add(entities.RollupWindow).Format(time.RFC3339),
				"total_quantity": rollup.TotalQuantity,
				"record_count":   rollup.RecordCount,
			})
			if err != nil {
				return ports.RollupSummary{}, err
			}
			if _, err := outbox.Execute(ctx, outboxcommands.StoreEventCommand{
				TenantID:      key.tenant,
				EventID:       fmt.Sprintf("%s:%s:%s:%s", key.tenant, key.meter, key.window.Format(time.RFC3339), now.UTC().Format(time.RFC3339Nano)),
				EventType:     "usage.rollup.completed",
				Payload:       payload,
				SourceService: "usage-metering",
			}); err != nil {
				return ports.RollupSummary{}, err
			}
		}
	}
	return summary, nil
}

func (s *Store) ListRollups(_ context.Context, tenantID string, limit int) ([]entities.UsageRollup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	items := make([]entities.UsageRollup, 0)
	for _, rollup := range s.rollups {
		if rollup.TenantID == tenantID {
			items = append(items, rollup)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].WindowStart.After(items[j].WindowStart)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ ports.UsageRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
