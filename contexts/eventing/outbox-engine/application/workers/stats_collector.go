package workers

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	application "herald/contexts/eventing/outbox-engine/application"
	domainerrors "herald/contexts/eventing/outbox-engine/domain/errors"
	"herald/contexts/eventing/outbox-engine/ports"
)

// StatsCollector exposes backlog counts as observable gauges. The read path
// is fail-open: a stats query error logs and records nothing, and never
// disturbs dispatch.
type StatsCollector struct {
	registration metric.Registration
}

// NewStatsCollector registers gauges over the repository's stats query.
// A nil provider falls back to the global meter provider, which is a noop
// unless telemetry was initialized.
func NewStatsCollector(
	repo ports.EventRepository,
	clock ports.Clock,
	provider metric.MeterProvider,
	logger *slog.Logger,
) (*StatsCollector, error) {
	if repo == nil {
		return nil, domainerrors.ErrRepositoryRequired
	}
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	log := application.ResolveLogger(logger)

	meter := provider.Meter("herald.outbox")

	pending, err := meter.Int64ObservableGauge(
		"outbox.backlog.pending",
		metric.WithDescription("Outbox rows awaiting first delivery"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox.backlog.pending gauge: %w", err)
	}
	processing, err := meter.Int64ObservableGauge(
		"outbox.backlog.processing",
		metric.WithDescription("Outbox rows currently claimed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox.backlog.processing gauge: %w", err)
	}
	failed, err := meter.Int64ObservableGauge(
		"outbox.backlog.failed",
		metric.WithDescription("Outbox rows awaiting retry"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox.backlog.failed gauge: %w", err)
	}
	deadLetter, err := meter.Int64ObservableGauge(
		"outbox.backlog.dead_letter",
		metric.WithDescription("Outbox rows requiring operator action"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox.backlog.dead_letter gauge: %w", err)
	}
	stuck, err := meter.Int64ObservableGauge(
		"outbox.backlog.stuck_processing",
		metric.WithDescription("Outbox rows claimed past their safety window"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox.backlog.stuck_processing gauge: %w", err)
	}

	registration, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats, statsErr := repo.EventStats(ctx, clock.Now().UTC())
			if statsErr != nil {
				log.Warn("outbox stats read failed",
					"event", "outbox_stats_read_failed",
					"module", "eventing/outbox-engine",
					"layer", "worker",
					"error", statsErr.Error(),
				)
				return nil
			}
			observer.ObserveInt64(pending, stats.Pending)
			observer.ObserveInt64(processing, stats.Processing)
			observer.ObserveInt64(failed, stats.Failed)
			observer.ObserveInt64(deadLetter, stats.DeadLetter)
			observer.ObserveInt64(stuck, stats.StuckProcessing)
			return nil
		},
		pending, processing, failed, deadLetter, stuck,
	)
	if err != nil {
		return nil, fmt.Errorf("register outbox stats callback: %w", err)
	}

	return &StatsCollector{registration: registration}, nil
}

// Close unregisters the gauges.
func (c *StatsCollector) Close() error {
	if c == nil || c.registration == nil {
		return nil
	}
	return c.registration.Unregister()
}
