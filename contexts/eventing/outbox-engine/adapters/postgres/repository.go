package postgresadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

// Repository persists outbox events. All status transitions are expressed as
// conditional updates guarded by the current status, so concurrent writers
// can never skip a state machine step.
type Repository struct {
	db     *gorm.DB
	policy entities.DeliveryPolicy
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, policy entities.DeliveryPolicy, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		policy: policy.Normalized(),
		logger: logger,
	}
}

// WithTx binds the repository to the caller's open transaction. Producers use
// this to get the transactional-outbox guarantee: the event row commits or
// rolls back together with the business mutation.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{
		db:     tx,
		policy: r.policy,
		logger: r.logger,
	}
}

func (r *Repository) StoreEvent(ctx context.Context, event entities.OutboxEvent) (ports.StoreOutcome, error) {
	row := eventModelFromEntity(event)

	// A bare DO NOTHING absorbs conflicts on either unique constraint: the
	// idempotency key and the (event_id, event_type) business key. Core
	// logic never inspects driver error codes for duplicates.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return ports.OutcomeDuplicate, nil
	}
	return ports.OutcomeStored, nil
}

const claimDueQuery = `
WITH due AS (
	SELECT id FROM outbox_events
	WHERE (status = 'PENDING' OR (status = 'FAILED' AND next_attempt_at <= NOW()))
	  AND attempts < ?
	ORDER BY created_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
UPDATE outbox_events AS o
SET status = 'PROCESSING',
    attempts = o.attempts + 1,
    next_attempt_at = NOW() + make_interval(secs => ?),
    updated_at = NOW()
FROM due
WHERE o.id = due.id
RETURNING o.id, o.tenant_id, o.event_id, o.event_type, o.idempotency_key,
          o.payload, o.correlation_id, o.source_service, o.status, o.attempts,
          o.next_attempt_at, o.last_error, o.created_at, o.published_at, o.updated_at`

func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []eventModel
	err := r.db.WithContext(ctx).
		Raw(claimDueQuery, r.policy.MaxAttempts, limit, r.policy.ClaimBackoff.Seconds()).
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("id = ? AND status = ?", strings.TrimSpace(id), string(entities.StatusProcessing)).
		Updates(map[string]any{
			"status":       string(entities.StatusPublished),
			"published_at": publishedAt.UTC(),
			"updated_at":   publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrEventNotClaimed
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id string, errText string, failedAt, nextAttemptAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("id = ? AND status = ?", strings.TrimSpace(id), string(entities.StatusProcessing)).
		Updates(map[string]any{
			"status":          string(entities.StatusFailed),
			"last_error":      truncateError(errText),
			"next_attempt_at": nextAttemptAt.UTC(),
			"updated_at":      failedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrEventNotClaimed
	}
	return nil
}

func (r *Repository) MarkDeadLetter(ctx context.Context, id string, errText string, deadLetteredAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("id = ? AND status = ?", strings.TrimSpace(id), string(entities.StatusProcessing)).
		Updates(map[string]any{
			"status":     string(entities.StatusDeadLetter),
			"last_error": truncateError(errText),
			"updated_at": deadLetteredAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrEventNotClaimed
	}
	return nil
}

const requeueStuckDeadLetterQuery = `
UPDATE outbox_events
SET status = 'DEAD_LETTER',
    last_error = 'processing window elapsed; retry budget exhausted',
    updated_at = NOW()
WHERE id IN (
	SELECT id FROM outbox_events
	WHERE status = 'PROCESSING' AND next_attempt_at <= ? AND attempts >= ?
	ORDER BY next_attempt_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)`

const requeueStuckRetryQuery = `
UPDATE outbox_events
SET status = 'FAILED',
    last_error = 'requeued after processing window elapsed',
    updated_at = NOW()
WHERE id IN (
	SELECT id FROM outbox_events
	WHERE status = 'PROCESSING' AND next_attempt_at <= ? AND attempts < ?
	ORDER BY next_attempt_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)`

func (r *Repository) RequeueStuck(ctx context.Context, limit int, now time.Time) (ports.RecoveryResult, error) {
	if limit <= 0 {
		limit = 200
	}
	cutoff := now.UTC()

	var result ports.RecoveryResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deadLettered := tx.Exec(requeueStuckDeadLetterQuery, cutoff, r.policy.MaxAttempts, limit)
		if deadLettered.Error != nil {
			return deadLettered.Error
		}
		result.DeadLettered = deadLettered.RowsAffected

		requeued := tx.Exec(requeueStuckRetryQuery, cutoff, r.policy.MaxAttempts, limit)
		if requeued.Error != nil {
			return requeued.Error
		}
		result.Requeued = requeued.RowsAffected
		return nil
	})
	if err != nil {
		return ports.RecoveryResult{}, err
	}
	return result, nil
}

func (r *Repository) EventStats(ctx context.Context, now time.Time) (ports.EventStats, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var counts []statusCount
	err := r.db.WithContext(ctx).
		Model(&eventModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).
		Error
	if err != nil {
		return ports.EventStats{}, err
	}

	var stats ports.EventStats
	for _, item := range counts {
		status, parseErr := entities.ParseEventStatus(item.Status)
		if parseErr != nil {
			return ports.EventStats{}, parseErr
		}
		switch status {
		case entities.StatusPending:
			stats.Pending = item.Count
		case entities.StatusProcessing:
			stats.Processing = item.Count
		case entities.StatusPublished:
			stats.Published = item.Count
		case entities.StatusFailed:
			stats.Failed = item.Count
		case entities.StatusDeadLetter:
			stats.DeadLetter = item.Count
		}
	}

	err = r.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("status = ? AND next_attempt_at <= ?", string(entities.StatusProcessing), now.UTC()).
		Count(&stats.StuckProcessing).
		Error
	if err != nil {
		return ports.EventStats{}, err
	}
	return stats, nil
}

func (r *Repository) ListFailed(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	return r.listByStatus(ctx, entities.StatusFailed, limit)
}

func (r *Repository) ListDeadLetter(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	return r.listByStatus(ctx, entities.StatusDeadLetter, limit)
}

func (r *Repository) listByStatus(ctx context.Context, status entities.EventStatus, limit int) ([]entities.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []eventModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListByCorrelation(ctx context.Context, tenantID, correlationID string) ([]entities.OutboxEvent, error) {
	var rows []eventModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND correlation_id = ?", strings.TrimSpace(tenantID), strings.TrimSpace(correlationID)).
		Order("created_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) DeleteOldPublished(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(entities.StatusPublished), olderThan.UTC()).
		Delete(&eventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

const maxStoredErrorLen = 2048

func truncateError(errText string) string {
	if len(errText) > maxStoredErrorLen {
		return errText[:maxStoredErrorLen]
	}
	return errText
}

type eventModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id"`
	EventID        string     `gorm:"column:event_id"`
	EventType      string     `gorm:"column:event_type"`
	IdempotencyKey *string    `gorm:"column:idempotency_key"`
	Payload        []byte     `gorm:"column:payload"`
	CorrelationID  string     `gorm:"column:correlation_id"`
	SourceService  string     `gorm:"column:source_service"`
	Status         string     `gorm:"column:status"`
	Attempts       int        `gorm:"column:attempts"`
	NextAttemptAt  time.Time  `gorm:"column:next_attempt_at"`
	LastError      string     `gorm:"column:last_error"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (eventModel) TableName() string {
	return "outbox_events"
}

func eventModelFromEntity(event entities.OutboxEvent) eventModel {
	row := eventModel{
		ID:            strings.TrimSpace(event.ID),
		TenantID:      strings.TrimSpace(event.TenantID),
		EventID:       strings.TrimSpace(event.EventID),
		EventType:     strings.TrimSpace(event.EventType),
		Payload:       append([]byte(nil), event.Payload...),
		CorrelationID: strings.TrimSpace(event.CorrelationID),
		SourceService: strings.TrimSpace(event.SourceService),
		Status:        string(event.Status),
		Attempts:      event.Attempts,
		NextAttemptAt: event.NextAttemptAt.UTC(),
		LastError:     event.LastError,
		CreatedAt:     event.CreatedAt.UTC(),
		UpdatedAt:     event.CreatedAt.UTC(),
	}
	// Empty keys are stored as NULL so the unique constraint only binds
	// caller-supplied keys.
	if key := strings.TrimSpace(event.IdempotencyKey); key != "" {
		row.IdempotencyKey = &key
	}
	if event.PublishedAt != nil {
		publishedAt := event.PublishedAt.UTC()
		row.PublishedAt = &publishedAt
	}
	return row
}

func (m eventModel) toEntity() entities.OutboxEvent {
	event := entities.OutboxEvent{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		Payload:       append([]byte(nil), m.Payload...),
		CorrelationID: m.CorrelationID,
		SourceService: m.SourceService,
		Status:        entities.EventStatus(m.Status),
		Attempts:      m.Attempts,
		NextAttemptAt: m.NextAttemptAt.UTC(),
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt.UTC(),
	}
	if m.IdempotencyKey != nil {
		event.IdempotencyKey = *m.IdempotencyKey
	}
	if m.PublishedAt != nil {
		publishedAt := m.PublishedAt.UTC()
		event.PublishedAt = &publishedAt
	}
	return event
}
