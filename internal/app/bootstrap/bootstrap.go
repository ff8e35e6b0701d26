package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	outboxengine "herald/contexts/eventing/outbox-engine"
	outboxpg "herald/contexts/eventing/outbox-engine/adapters/postgres"
	"herald/contexts/eventing/outbox-engine/adapters/webhook"
	outboxworkers "herald/contexts/eventing/outbox-engine/application/workers"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	outboxports "herald/contexts/eventing/outbox-engine/ports"
	usagemetering "herald/contexts/eventing/usage-metering"
	usagepg "herald/contexts/eventing/usage-metering/adapters/postgres"
	usageworkers "herald/contexts/eventing/usage-metering/application/workers"
	"herald/internal/platform/config"
	"herald/internal/platform/db"
	"herald/internal/platform/httpserver"
	"herald/internal/platform/messaging"
	"herald/internal/platform/telemetry"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres      *db.Postgres
	relay         outboxworkers.DispatchRelay
	recovery      outboxworkers.StuckRecovery
	retention     outboxworkers.RetentionCleanup
	rollup        usageworkers.RollupJob
	stats         *outboxworkers.StatsCollector
	kafka         *messaging.KafkaPublisher
	shutdownOTel  func(context.Context) error
	pollInterval  time.Duration
	runRollup     bool
	runRetention  bool
	retentionTick time.Duration
	logger        *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	policy := deliveryPolicy(cfg)
	outboxRepo := outboxpg.NewRepository(pg.DB, policy, logger)
	lock := outboxpg.NewJobLock(pg.DB, logger)

	outboxModule := outboxengine.NewModule(outboxengine.Dependencies{
		Store:          outboxRepo,
		Repository:     outboxRepo,
		Lock:           lock,
		Clock:          outboxpg.SystemClock{},
		IDGenerator:    outboxpg.UUIDGenerator{},
		Policy:         policy,
		BatchSize:      cfg.BatchSize,
		PublishTimeout: cfg.PublishTimeout,
		RetentionDays:  cfg.RetentionDays,
		Logger:         logger,
	})

	usageRepo := usagepg.NewRepository(pg.DB, outboxRepo, logger)
	usageModule := usagemetering.NewModule(usagemetering.Dependencies{
		Repository:  usageRepo,
		Lock:        lock,
		Clock:       outboxpg.SystemClock{},
		IDGenerator: outboxpg.UUIDGenerator{},
		Logger:      logger,
	})

	server := httpserver.New(outboxModule, usageModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	provider, shutdownOTel, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	policy := deliveryPolicy(cfg)
	outboxRepo := outboxpg.NewRepository(pg.DB, policy, logger)
	lock := outboxpg.NewJobLock(pg.DB, logger)

	var kafka *messaging.KafkaPublisher
	var transport outboxports.Transport
	switch cfg.Transport {
	case config.TransportKafka:
		kafka = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		transport = kafka
	case config.TransportWebhook:
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			_ = pg.Close()
			return nil, errors.New("WEBHOOK_URL is required for the webhook transport")
		}
		transport = webhook.NewPublisher(cfg.WebhookURL, logger)
	default:
		_ = pg.Close()
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	stats, err := outboxworkers.NewStatsCollector(outboxRepo, outboxpg.SystemClock{}, provider, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	usageRepo := usagepg.NewRepository(pg.DB, outboxRepo, logger)

	return &WorkerApp{
		postgres: pg,
		relay: outboxworkers.DispatchRelay{
			Repository:     outboxRepo,
			Transport:      transport,
			Lock:           lock,
			Clock:          outboxpg.SystemClock{},
			Policy:         policy,
			BatchSize:      cfg.BatchSize,
			PublishTimeout: cfg.PublishTimeout,
			Logger:         logger,
		},
		recovery: outboxworkers.StuckRecovery{
			Repository: outboxRepo,
			Lock:       lock,
			Clock:      outboxpg.SystemClock{},
			Logger:     logger,
		},
		retention: outboxworkers.RetentionCleanup{
			Repository:    outboxRepo,
			Lock:          lock,
			Clock:         outboxpg.SystemClock{},
			RetentionDays: cfg.RetentionDays,
			Logger:        logger,
		},
		rollup: usageworkers.RollupJob{
			Repository: usageRepo,
			Lock:       lock,
			Clock:      outboxpg.SystemClock{},
			Logger:     logger,
		},
		stats:         stats,
		kafka:         kafka,
		shutdownOTel:  shutdownOTel,
		pollInterval:  cfg.PollInterval,
		runRollup:     cfg.RollupEnabled,
		runRetention:  cfg.CleanupEnabled,
		retentionTick: time.Hour,
		logger:        logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	// Rows claimed by an instance that died before this one come back
	// through the same sweep the loop runs, so no special startup path.
	lastRetention := time.Time{}
	for {
		if _, err := w.recovery.RunOnce(ctx); err != nil {
			w.logTickError("stuck recovery", err)
		}
		if _, err := w.relay.RunOnce(ctx); err != nil {
			w.logTickError("dispatch", err)
		}
		if w.runRollup {
			if _, err := w.rollup.RunOnce(ctx); err != nil {
				w.logTickError("usage rollup", err)
			}
		}
		if w.runRetention && time.Since(lastRetention) >= w.retentionTick {
			if _, err := w.retention.RunOnce(ctx); err != nil {
				w.logTickError("retention cleanup", err)
			}
			lastRetention = time.Now()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// logTickError keeps the loop alive through transient failures. A broken
// database surfaces on every tick; killing the process gains nothing.
func (w *WorkerApp) logTickError(job string, err error) {
	w.logger.Error("worker tick failed",
		"event", "bootstrap_worker_tick_failed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"job", job,
		"error", err.Error(),
	)
}

func (w *WorkerApp) Close() error {
	var first error
	if err := w.stats.Close(); err != nil {
		first = err
	}
	if w.kafka != nil {
		if err := w.kafka.Close(); err != nil && first == nil {
			first = err
		}
	}
	if w.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.shutdownOTel(ctx); err != nil && first == nil {
			first = err
		}
	}
	if w.postgres != nil {
		if err := w.postgres.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func deliveryPolicy(cfg config.Config) entities.DeliveryPolicy {
	return entities.DeliveryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		ClaimBackoff: cfg.ClaimBackoff,
	}.Normalized()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
