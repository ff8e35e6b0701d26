// Package migrations wires golang-migrate execution against the embedded
// SQL files.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	dbmigrations "herald/db/migrations"
)

// Apply brings the schema reachable via dsn up to date. Running against an
// already-migrated database is a no-op.
func Apply(ctx context.Context, dsn string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("migrations connection close failed",
				"event", "db_migrations_close_failed",
				"module", "internal/platform/db/migrations",
				"layer", "platform",
				"error", cerr.Error(),
			)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	var driverConfig pgxv5.Config
	driver, err := pgxv5.WithInstance(db, &driverConfig)
	if err != nil {
		return fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	source, err := iofs.New(dbmigrations.Files, ".")
	if err != nil {
		return fmt.Errorf("initialise migrations source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("initialise migrate instance: %w", err)
	}
	defer func() {
		sourceErr, dbErr := m.Close()
		if sourceErr != nil {
			logger.Warn("migrations source close failed",
				"event", "db_migrations_close_failed",
				"module", "internal/platform/db/migrations",
				"layer", "platform",
				"error", sourceErr.Error(),
			)
		}
		if dbErr != nil {
			logger.Warn("migrations db close failed",
				"event", "db_migrations_close_failed",
				"module", "internal/platform/db/migrations",
				"layer", "platform",
				"error", dbErr.Error(),
			)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date",
				"event", "db_migrations_noop",
				"module", "internal/platform/db/migrations",
				"layer", "platform",
			)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("database migrations applied",
		"event", "db_migrations_applied",
		"module", "internal/platform/db/migrations",
		"layer", "platform",
	)
	return nil
}
