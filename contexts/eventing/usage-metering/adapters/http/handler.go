package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"herald/contexts/eventing/usage-metering/application/commands"
	"herald/contexts/eventing/usage-metering/application/queries"
	domainerrors "herald/contexts/eventing/usage-metering/domain/errors"
	httptransport "herald/contexts/eventing/usage-metering/transport/http"
)

type Handler struct {
	RecordUsage commands.RecordUsageUseCase
	ListRollups queries.ListRollupsQuery
	Logger      *slog.Logger
}

func (h Handler) RecordUsageHandler(ctx context.Context, req httptransport.RecordUsageRequest) (httptransport.RecordUsageResponse, error) {
	var recordedAt time.Time
	if req.RecordedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			return httptransport.RecordUsageResponse{}, domainerrors.ErrRecordedAtInvalid
		}
		recordedAt = parsed
	}
	result, err := h.RecordUsage.Execute(ctx, commands.RecordUsageCommand{
		TenantID:   req.TenantID,
		Meter:      req.Meter,
		Quantity:   req.Quantity,
		RecordedAt: recordedAt,
	})
	if err != nil {
		return httptransport.RecordUsageResponse{}, err
	}
	return httptransport.RecordUsageResponse{ID: result.ID}, nil
}

func (h Handler) ListRollupsHandler(ctx context.Context, tenantID string, limit int) (httptransport.ListRollupsResponse, error) {
	items, err := h.ListRollups.Execute(ctx, tenantID, limit)
	if err != nil {
		return httptransport.ListRollupsResponse{}, err
	}
	result := make([]httptransport.UsageRollupDTO, 0, len(items))
	for _, item := range items {
		result = append(result, httptransport.UsageRollupDTO{
			ID:            item.ID,
			TenantID:      item.TenantID,
			Meter:         item.Meter,
			WindowStart:   item.WindowStart.Format(time.RFC3339),
			WindowEnd:     item.WindowEnd.Format(time.RFC3339),
			TotalQuantity: item.TotalQuantity,
			RecordCount:   item.RecordCount,
		})
	}
	return httptransport.ListRollupsResponse{Items: result}, nil
}
