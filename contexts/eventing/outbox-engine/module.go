package outboxengine

import (
	"log/slog"
	"time"

	httpadapter "herald/contexts/eventing/outbox-engine/adapters/http"
	"herald/contexts/eventing/outbox-engine/adapters/memory"
	"herald/contexts/eventing/outbox-engine/application/commands"
	"herald/contexts/eventing/outbox-engine/application/queries"
	"herald/contexts/eventing/outbox-engine/application/workers"
	"herald/contexts/eventing/outbox-engine/domain/entities"
	"herald/contexts/eventing/outbox-engine/ports"
)

type Module struct {
	Handler   httpadapter.Handler
	Relay     workers.DispatchRelay
	Recovery  workers.StuckRecovery
	Retention workers.RetentionCleanup
	Store     *memory.Store
}

type Dependencies struct {
	Store          ports.EventStore
	Repository     ports.EventRepository
	Transport      ports.Transport
	Lock           ports.JobLock
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	Policy         entities.DeliveryPolicy
	BatchSize      int
	PublishTimeout time.Duration
	RetentionDays  int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	storeEvent := commands.StoreEventUseCase{
		Store:       deps.Store,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}

	stats := queries.EventStatsQuery{
		Repository: deps.Repository,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	failedEvents := queries.FailedEventsQuery{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	deadLetterEvents := queries.DeadLetterEventsQuery{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	correlationTrace := queries.CorrelationTraceQuery{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}

	relay := workers.DispatchRelay{
		Repository:     deps.Repository,
		Transport:      deps.Transport,
		Lock:           deps.Lock,
		Clock:          deps.Clock,
		Policy:         deps.Policy,
		BatchSize:      deps.BatchSize,
		PublishTimeout: deps.PublishTimeout,
		Logger:         deps.Logger,
	}
	recovery := workers.StuckRecovery{
		Repository: deps.Repository,
		Lock:       deps.Lock,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	retention := workers.RetentionCleanup{
		Repository:    deps.Repository,
		Lock:          deps.Lock,
		Clock:         deps.Clock,
		RetentionDays: deps.RetentionDays,
		Logger:        deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			StoreEvent:       storeEvent,
			Stats:            stats,
			FailedEvents:     failedEvents,
			DeadLetterEvents: deadLetterEvents,
			CorrelationTrace: correlationTrace,
			Cleanup:          retention,
			Logger:           deps.Logger,
		},
		Relay:     relay,
		Recovery:  recovery,
		Retention: retention,
	}
}

func NewInMemoryModule(transport ports.Transport, policy entities.DeliveryPolicy, logger *slog.Logger) Module {
	store := memory.NewStore(policy)
	module := NewModule(Dependencies{
		Store:       store,
		Repository:  store,
		Transport:   transport,
		Lock:        memory.NewJobLock(),
		Clock:       store,
		IDGenerator: store,
		Policy:      policy,
		Logger:      logger,
	})
	module.Store = store
	return module
}
