package queries

import (
	"context"
	"log/slog"
	"strings"

	"herald/contexts/eventing/outbox-engine/domain/entities"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

const defaultListLimit = 50

// EventStatsQuery reads backlog counts per status. It is the primary operator
// signal: every row is visible here until it terminalizes, and rows stuck
// PROCESSING past their safety window surface as StuckProcessing.
type EventStatsQuery struct {
	Repository ports.EventRepository
	Clock      ports.Clock
	Logger     *slog.Logger
}

func (q EventStatsQuery) Execute(ctx context.Context) (ports.EventStats, error) {
	if q.Repository == nil {
		return ports.EventStats{}, domainerrors.ErrRepositoryRequired
	}
	return q.Repository.EventStats(ctx, q.Clock.Now().UTC())
}

// FailedEventsQuery lists retry-eligible failures for operator triage,
// most recently updated first.
type FailedEventsQuery struct {
	Repository ports.EventRepository
	Logger     *slog.Logger
}

func (q FailedEventsQuery) Execute(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	if q.Repository == nil {
		return nil, domainerrors.ErrRepositoryRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return q.Repository.ListFailed(ctx, limit)
}

// DeadLetterEventsQuery lists rows that exhausted their retry budget. These
// require manual remediation; the engine never deletes or retries them.
type DeadLetterEventsQuery struct {
	Repository ports.EventRepository
	Logger     *slog.Logger
}

func (q DeadLetterEventsQuery) Execute(ctx context.Context, limit int) ([]entities.OutboxEvent, error) {
	if q.Repository == nil {
		return nil, domainerrors.ErrRepositoryRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return q.Repository.ListDeadLetter(ctx, limit)
}

// CorrelationTraceQuery returns a tenant's events for one correlation id,
// tracing a business operation's emissions end to end.
type CorrelationTraceQuery struct {
	Repository ports.EventRepository
	Logger     *slog.Logger
}

func (q CorrelationTraceQuery) Execute(ctx context.Context, tenantID, correlationID string) ([]entities.OutboxEvent, error) {
	if q.Repository == nil {
		return nil, domainerrors.ErrRepositoryRequired
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, domainerrors.ErrTenantIDRequired
	}
	return q.Repository.ListByCorrelation(ctx, tenantID, strings.TrimSpace(correlationID))
}
