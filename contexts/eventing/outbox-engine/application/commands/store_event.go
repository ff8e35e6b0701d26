package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	application "herald/contexts/eventing/outbox-engine/application"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	"herald/contexts/eventing/outbox-engine/ports"
)

type StoreEventCommand struct {
	TenantID       string
	EventID        string
	EventType      string
	Payload        json.RawMessage
	CorrelationID  string
	IdempotencyKey string
	SourceService  string
}

// StoreEventUseCase appends one outbox row. It never opens a transaction of
// its own: the wired EventStore decides the transaction boundary, so a
// producer binding the store to its open transaction gets the transactional
// outbox guarantee for free.
type StoreEventUseCase struct {
	Store       ports.EventStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type StoreEventResult struct {
	ID        string
	Duplicate bool
}

func (uc StoreEventUseCase) Execute(ctx context.Context, cmd StoreEventCommand) (StoreEventResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	id, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return StoreEventResult{}, err
	}

	now := uc.Clock.Now().UTC()
	event := entities.OutboxEvent{
		ID:             id,
		TenantID:       strings.TrimSpace(cmd.TenantID),
		EventID:        strings.TrimSpace(cmd.EventID),
		EventType:      strings.TrimSpace(cmd.EventType),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		Payload:        cmd.Payload,
		CorrelationID:  strings.TrimSpace(cmd.CorrelationID),
		SourceService:  strings.TrimSpace(cmd.SourceService),
		Status:         entities.StatusPending,
		Attempts:       0,
		NextAttemptAt:  now,
		CreatedAt:      now,
	}
	if err := event.Validate(); err != nil {
		return StoreEventResult{}, err
	}

	outcome, err := uc.Store.StoreEvent(ctx, event)
	if err != nil {
		// Propagating rolls back the caller's enclosing transaction: a
		// business mutation must not proceed without its event recorded.
		logger.Error("outbox store event failed",
			"event", "outbox_store_failed",
			"module", "eventing/outbox-engine",
			"layer", "application",
			"tenant_id", event.TenantID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return StoreEventResult{}, err
	}

	if outcome == ports.OutcomeDuplicate {
		logger.Debug("outbox duplicate submission ignored",
			"event", "outbox_store_duplicate",
			"module", "eventing/outbox-engine",
			"layer", "application",
			"tenant_id", event.TenantID,
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return StoreEventResult{ID: "", Duplicate: true}, nil
	}

	return StoreEventResult{ID: id}, nil
}
