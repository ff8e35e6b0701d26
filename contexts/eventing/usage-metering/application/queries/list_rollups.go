package queries

import (
	"context"
	"log/slog"
	"strings"

	"herald/contexts/eventing/usage-metering/domain/entities"
	domainerrors "herald/contexts/eventing/usage-metering/domain/errors"
	"herald/contexts/eventing/usage-metering/ports"
)

const defaultListLimit = 50

type ListRollupsQuery struct {
	Repository ports.UsageRepository
	Logger     *slog.Logger
}

func (q ListRollupsQuery) Execute(ctx context.Context, tenantID string, limit int) ([]entities.UsageRollup, error) {
	if q.Repository == nil {
		return nil, domainerrors.ErrRepositoryRequired
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, domainerrors.ErrTenantIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return q.Repository.ListRollups(ctx, tenantID, limit)
}
