package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "herald/contexts/eventing/usage-metering/application"
	"herald/contexts/eventing/usage-metering/domain/entities"
	"herald/contexts/eventing/usage-metering/ports"
)

type RecordUsageCommand struct {
	TenantID   string
	Meter      string
	Quantity   int64
	RecordedAt time.Time
}

type RecordUsageUseCase struct {
	Repository  ports.UsageRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

type RecordUsageResult struct {
	ID string
}

func (uc RecordUsageUseCase) Execute(ctx context.Context, cmd RecordUsageCommand) (RecordUsageResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	id, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return RecordUsageResult{}, err
	}

	recordedAt := cmd.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = uc.Clock.Now()
	}
	record := entities.UsageRecord{
		ID:         id,
		TenantID:   strings.TrimSpace(cmd.TenantID),
		Meter:      strings.TrimSpace(cmd.Meter),
		Quantity:   cmd.Quantity,
		RecordedAt: recordedAt.UTC(),
	}
	if err := record.Validate(); err != nil {
		return RecordUsageResult{}, err
	}

	if err := uc.Repository.StoreRecord(ctx, record); err != nil {
		logger.Error("usage record store failed",
			"event", "usage_record_failed",
			"module", "eventing/usage-metering",
			"layer", "application",
			"tenant_id", record.TenantID,
			"meter", record.Meter,
			"error", err.Error(),
		)
		return RecordUsageResult{}, err
	}
	return RecordUsageResult{ID: id}, nil
}
