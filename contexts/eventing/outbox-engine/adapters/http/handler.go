package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"herald/contexts/eventing/outbox-engine/application/commands"
	"herald/contexts/eventing/outbox-engine/application/queries"
	"herald/contexts/eventing/outbox-engine/application/workers"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	httptransport "herald/contexts/eventing/outbox-engine/transport/http"
)

type Handler struct {
	StoreEvent       commands.StoreEventUseCase
	Stats            queries.EventStatsQuery
	FailedEvents     queries.FailedEventsQuery
	DeadLetterEvents queries.DeadLetterEventsQuery
	CorrelationTrace queries.CorrelationTraceQuery
	Cleanup          workers.RetentionCleanup
	Logger           *slog.Logger
}

func (h Handler) EnqueueEventHandler(ctx context.Context, req httptransport.EnqueueEventRequest) (httptransport.EnqueueEventResponse, error) {
	result, err := h.StoreEvent.Execute(ctx, commands.StoreEventCommand{
		TenantID:       req.TenantID,
		EventID:        req.EventID,
		EventType:      req.EventType,
		Payload:        req.Payload,
		CorrelationID:  req.CorrelationID,
		IdempotencyKey: req.IdempotencyKey,
		SourceService:  req.SourceService,
	})
	if err != nil {
		return httptransport.EnqueueEventResponse{}, err
	}
	return httptransport.EnqueueEventResponse{
		ID:        result.ID,
		Duplicate: result.Duplicate,
	}, nil
}

func (h Handler) StatsHandler(ctx context.Context) (httptransport.StatsResponse, error) {
	stats, err := h.Stats.Execute(ctx)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	return httptransport.StatsResponse{
		Pending:         stats.Pending,
		Processing:      stats.Processing,
		Published:       stats.Published,
		Failed:          stats.Failed,
		DeadLetter:      stats.DeadLetter,
		StuckProcessing: stats.StuckProcessing,
	}, nil
}

func (h Handler) FailedEventsHandler(ctx context.Context, limit int) (httptransport.ListEventsResponse, error) {
	items, err := h.FailedEvents.Execute(ctx, limit)
	if err != nil {
		return httptransport.ListEventsResponse{}, err
	}
	return mapEvents(items), nil
}

func (h Handler) DeadLetterEventsHandler(ctx context.Context, limit int) (httptransport.ListEventsResponse, error) {
	items, err := h.DeadLetterEvents.Execute(ctx, limit)
	if err != nil {
		return httptransport.ListEventsResponse{}, err
	}
	return mapEvents(items), nil
}

func (h Handler) CorrelationTraceHandler(ctx context.Context, tenantID, correlationID string) (httptransport.ListEventsResponse, error) {
	items, err := h.CorrelationTrace.Execute(ctx, tenantID, correlationID)
	if err != nil {
		return httptransport.ListEventsResponse{}, err
	}
	return mapEvents(items), nil
}

func (h Handler) CleanupHandler(ctx context.Context, req httptransport.CleanupRequest) (httptransport.CleanupResponse, error) {
	cleanup := h.Cleanup
	if req.RetentionDays > 0 {
		cleanup.RetentionDays = req.RetentionDays
	}
	deleted, err := cleanup.RunOnce(ctx)
	if err != nil {
		return httptransport.CleanupResponse{}, err
	}
	return httptransport.CleanupResponse{Deleted: deleted}, nil
}

func mapEvents(items []entities.OutboxEvent) httptransport.ListEventsResponse {
	result := make([]httptransport.OutboxEventDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapEvent(item))
	}
	return httptransport.ListEventsResponse{Items: result}
}

func mapEvent(event entities.OutboxEvent) httptransport.OutboxEventDTO {
	dto := httptransport.OutboxEventDTO{
		ID:            event.ID,
		TenantID:      event.TenantID,
		EventID:       event.EventID,
		EventType:     event.EventType,
		CorrelationID: event.CorrelationID,
		SourceService: event.SourceService,
		Status:        string(event.Status),
		Attempts:      event.Attempts,
		NextAttemptAt: event.NextAttemptAt.Format(time.RFC3339),
		LastError:     event.LastError,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt.Format(time.RFC3339),
	}
	if event.PublishedAt != nil {
		dto.PublishedAt = event.PublishedAt.Format(time.RFC3339)
	}
	return dto
}
