package usagemetering

import (
	"log/slog"

	outboxcommands "herald/contexts/eventing/outbox-engine/application/commands"
	outboxmemory "herald/contexts/eventing/outbox-engine/adapters/memory"
	httpadapter "herald/contexts/eventing/usage-metering/adapters/http"
	"herald/contexts/eventing/usage-metering/adapters/memory"
	"herald/contexts/eventing/usage-metering/application/commands"
	"herald/contexts/eventing/usage-metering/application/queries"
	"herald/contexts/eventing/usage-metering/application/workers"
	"herald/contexts/eventing/usage-metering/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Rollup  workers.RollupJob
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.UsageRepository
	Lock        ports.JobLock
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	recordUsage := commands.RecordUsageUseCase{
		Repository:  deps.Repository,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	listRollups := queries.ListRollupsQuery{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	rollup := workers.RollupJob{
		Repository: deps.Repository,
		Lock:       deps.Lock,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			RecordUsage: recordUsage,
			ListRollups: listRollups,
			Logger:      deps.Logger,
		},
		Rollup: rollup,
	}
}

// NewInMemoryModule wires the usage context against the in-memory adapters.
// Rollup completion events land in the supplied outbox store.
func NewInMemoryModule(outbox *outboxmemory.Store, logger *slog.Logger) Module {
	var enqueue *outboxcommands.StoreEventUseCase
	if outbox != nil {
		enqueue = &outboxcommands.StoreEventUseCase{
			Store:       outbox,
			Clock:       outbox,
			IDGenerator: outbox,
			Logger:      logger,
		}
	}
	store := memory.NewStore(enqueue)
	module := NewModule(Dependencies{
		Repository:  store,
		Lock:        outboxmemory.NewJobLock(),
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
