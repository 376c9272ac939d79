package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/config"
	"github.com/phrazzld/commandq/internal/platform/postgres"
	"github.com/phrazzld/commandq/internal/platform/sqlite"
	"github.com/phrazzld/commandq/internal/queue"
)

// openDB opens the SQL database of a sqlite or postgres store.
func openDB(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.Path)
	case "postgres":
		return postgres.Open(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("driver %q has no database", cfg.Driver)
	}
}

// runMigrations runs a goose command against db for the configured driver.
func runMigrations(ctx context.Context, db *sql.DB, driver, command string, logger *slog.Logger) error {
	if driver == "postgres" {
		return postgres.Migrate(ctx, db, command, logger)
	}
	return sqlite.Migrate(ctx, db, command, logger)
}

// openQueueStore opens the configured persister, brings its schema up to
// date and wraps it in a queue store. The returned close func releases the
// database.
func openQueueStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*queue.Store, func() error, error) {
	if cfg.Driver == "memory" {
		logger.Warn("memory store configured, queues are not durable")
		return queue.NewStore(queue.NewMemoryPersister(), command.NewClock(), logger), func() error { return nil }, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := runMigrations(ctx, db, cfg.Driver, "up", logger); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate %s store: %w", cfg.Driver, err)
	}

	var persister queue.Persister
	if cfg.Driver == "postgres" {
		persister = postgres.NewQueuePersister(db)
	} else {
		persister = sqlite.NewQueuePersister(db)
	}
	return queue.NewStore(persister, command.NewClock(), logger), db.Close, nil
}
