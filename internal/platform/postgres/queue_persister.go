package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate runs a goose command against the PostgreSQL schema.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	return store.Migrate(ctx, db, "postgres", migrationsFS, "migrations", command, logger)
}

// insertQuery builds the parameterized insert for the queue table.
func insertQuery() string {
	params := make([]string, store.QueueColumnCount)
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return "INSERT INTO " + store.QueueTable + " (" + store.QueueColumns + ") VALUES (" +
		strings.Join(params, ", ") + ")"
}

// QueuePersister implements queue.Persister on PostgreSQL.
type QueuePersister struct {
	db     *sql.DB
	insert string
}

var _ queue.Persister = (*QueuePersister)(nil)

// NewQueuePersister creates a persister on db. The schema must be migrated.
func NewQueuePersister(db *sql.DB) *QueuePersister {
	return &QueuePersister{db: db, insert: insertQuery()}
}

// LoadRecords returns every persisted command.
func (p *QueuePersister) LoadRecords(ctx context.Context) ([]queue.Record, error) {
	records, err := store.LoadQueueRecords(ctx, p.db)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load queue records", "error", err)
		return nil, store.NewStoreError("queue_command", "load", "failed to load queue records", MapError(err))
	}
	return records, nil
}

// SaveRecords replaces the persisted queues with records in one transaction.
func (p *QueuePersister) SaveRecords(ctx context.Context, records []queue.Record) error {
	err := store.RunInTransaction(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		return store.ReplaceQueueRecords(ctx, tx, p.insert, records)
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to save queue records",
			"error", err,
			"records", len(records))
		return store.NewStoreError("queue_command", "save", "failed to save queue records", MapError(err))
	}
	return nil
}
