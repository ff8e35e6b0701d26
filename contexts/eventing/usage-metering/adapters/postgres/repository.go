package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	outboxpg "herald/contexts/eventing/outbox-engine/adapters/postgres"
	outboxcommands "herald/contexts/eventing/outbox-engine/application/commands"
	"herald/contexts/eventing/usage-metering/domain/entities"
	"herald/contexts/eventing/usage-metering/ports"
)

const rollupEventType = "usage.rollup.completed"

// Repository persists usage records and performs the hourly aggregation. The
// rollup pass runs in one transaction together with the outbox enqueue, so a
// rollup either commits with its completion event or not at all.
type Repository struct {
	db     *gorm.DB
	outbox *outboxpg.Repository
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, outbox *outboxpg.Repository, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		outbox: outbox,
		logger: logger,
	}
}

func (r *Repository) StoreRecord(ctx context.Context, record entities.UsageRecord) error {
	row := recordModelFromEntity(record)
	return r.db.WithContext(ctx).Create(&row).Error
}

type windowAggregate struct {
	TenantID    string
	Meter       string
	WindowStart time.Time
	Total       int64
	Count       int64
}

type pendingRecord struct {
	TenantID   string
	Meter      string
	Quantity   int64
	RecordedAt time.Time
}

// Marking and reading happen in one statement: the marked set is exactly
// the aggregated set. A record committed by an ingest transaction while the
// pass runs stays unmarked and folds on the next pass.
const foldPendingRecordsQuery = `
UPDATE usage_records
SET rolled_up = TRUE
WHERE rolled_up = FALSE AND recorded_at < ?
RETURNING tenant_id, meter, quantity, recorded_at`

// RollupDue folds every fully elapsed hour window into usage_rollups. A
// window that already has a rollup row (late records) merges into it rather
// than failing on the unique constraint.
func (r *Repository) RollupDue(ctx context.Context, now time.Time) (ports.RollupSummary, error) {
	currentWindow := now.UTC().Truncate(entities.RollupWindow)

	var summary ports.RollupSummary
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []pendingRecord
		if err := tx.Raw(foldPendingRecordsQuery, currentWindow).Scan(&pending).Error; err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		groups := aggregateWindows(pending)

		enqueue := outboxcommands.StoreEventUseCase{
			Store:       r.outbox.WithTx(tx),
			Clock:       outboxpg.SystemClock{},
			IDGenerator: outboxpg.UUIDGenerator{},
			Logger:      r.logger,
		}

		for _, group := range groups {
			if err := r.upsertRollup(tx, group, now); err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]any{
				"tenant_id":      group.TenantID,
				"meter":          group.Meter,
				"window_start":   group.WindowStart.UTC().Format(time.RFC3339),
				"window_end":     group.WindowStart.UTC().Add(entities.RollupWindow).Format(time.RFC3339),
				"total_quantity": group.Total,
				"record_count":   group.Count,
			})
			if err != nil {
				return err
			}
			if _, err := enqueue.Execute(ctx, outboxcommands.StoreEventCommand{
				TenantID:      group.TenantID,
				EventID:       rollupEventID(group, now),
				EventType:     rollupEventType,
				Payload:       payload,
				SourceService: "usage-metering",
			}); err != nil {
				return err
			}

			summary.Rollups++
			summary.RecordsFolded += group.Count
		}
		return nil
	})
	if err != nil {
		return ports.RollupSummary{}, err
	}
	return summary, nil
}

// aggregateWindows groups folded records per tenant, meter, and hour window,
// ordered oldest window first.
func aggregateWindows(pending []pendingRecord) []windowAggregate {
	index := make(map[pendingKey]int)
	groups := make([]windowAggregate, 0)
	for _, record := range pending {
		window := record.RecordedAt.UTC().Truncate(entities.RollupWindow)
		key := pendingKey{record.TenantID, record.Meter, window}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, windowAggregate{
				TenantID:    record.TenantID,
				Meter:       record.Meter,
				WindowStart: window,
			})
		}
		groups[i].Total += record.Quantity
		groups[i].Count++
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].WindowStart.Equal(groups[j].WindowStart) {
			return groups[i].WindowStart.Before(groups[j].WindowStart)
		}
		if groups[i].TenantID != groups[j].TenantID {
			return groups[i].TenantID < groups[j].TenantID
		}
		return groups[i].Meter < groups[j].Meter
	})
	return groups
}

type pendingKey struct {
	tenant string
	meter  string
	window time.Time
}

func (r *Repository) upsertRollup(tx *gorm.DB, group windowAggregate, now time.Time) error {
	row := rollupModel{
		ID:            uuid.NewString(),
		TenantID:      group.TenantID,
		Meter:         group.Meter,
		WindowStart:   group.WindowStart.UTC(),
		WindowEnd:     group.WindowStart.UTC().Add(entities.RollupWindow),
		TotalQuantity: group.Total,
		RecordCount:   group.Count,
		CreatedAt:     now.UTC(),
	}

	// The savepoint keeps a constraint violation from poisoning the outer
	// transaction.
	insertErr := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&row).Error
	})
	if insertErr == nil {
		return nil
	}
	if !isUniqueViolation(insertErr) {
		return insertErr
	}

	return tx.Model(&rollupModel{}).
		Where("tenant_id = ? AND meter = ? AND window_start = ?",
			group.TenantID, group.Meter, group.WindowStart.UTC()).
		Updates(map[string]any{
			"total_quantity": gorm.Expr("total_quantity + ?", group.Total),
			"record_count":   gorm.Expr("record_count + ?", group.Count),
		}).Error
}

func (r *Repository) ListRollups(ctx context.Context, tenantID string, limit int) ([]entities.UsageRollup, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []rollupModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Order("window_start DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.UsageRollup, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func rollupEventID(group windowAggregate, now time.Time) string {
	// Window identity plus the pass timestamp: a late-record merge for the
	// same window emits a fresh event instead of colliding with the first.
	return group.TenantID + ":" + group.Meter + ":" +
		group.WindowStart.UTC().Format(time.RFC3339) + ":" +
		now.UTC().Format(time.RFC3339Nano)
}

type recordModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	TenantID   string    `gorm:"column:tenant_id"`
	Meter      string    `gorm:"column:meter"`
	Quantity   int64     `gorm:"column:quantity"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
	RolledUp   bool      `gorm:"column:rolled_up"`
}

func (recordModel) TableName() string {
	return "usage_records"
}

func recordModelFromEntity(record entities.UsageRecord) recordModel {
	return recordModel{
		ID:         strings.TrimSpace(record.ID),
		TenantID:   strings.TrimSpace(record.TenantID),
		Meter:      strings.TrimSpace(record.Meter),
		Quantity:   record.Quantity,
		RecordedAt: record.RecordedAt.UTC(),
		RolledUp:   record.RolledUp,
	}
}

type rollupModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	TenantID      string    `gorm:"column:tenant_id"`
	Meter         string    `gorm:"column:meter"`
	WindowStart   time.Time `gorm:"column:window_start"`
	WindowEnd     time.Time `gorm:"column:window_end"`
	TotalQuantity int64     `gorm:"column:total_quantity"`
	RecordCount   int64     `gorm:"column:record_count"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (rollupModel) TableName() string {
	return "usage_rollups"
}

func (m rollupModel) toEntity() entities.UsageRollup {
	return entities.UsageRollup{
		ID:            m.ID,
		TenantID:      m.TenantID,
		Meter:         m.Meter,
		WindowStart:   m.WindowStart.UTC(),
		WindowEnd:     m.WindowEnd.UTC(),
		TotalQuantity: m.TotalQuantity,
		RecordCount:   m.RecordCount,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}
