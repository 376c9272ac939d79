package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/store"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if needed) the database file at path.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return db, nil
}

// Migrate runs a goose command against the SQLite schema.
func Migrate(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	return store.Migrate(ctx, db, "sqlite3", migrationsFS, "migrations", command, logger)
}

// QueuePersister implements queue.Persister on SQLite.
type QueuePersister struct {
	db     *sql.DB
	insert string
}

var _ queue.Persister = (*QueuePersister)(nil)

// NewQueuePersister creates a persister on db. The schema must be migrated.
func NewQueuePersister(db *sql.DB) *QueuePersister {
	params := strings.TrimSuffix(strings.Repeat("?, ", store.QueueColumnCount), ", ")
	return &QueuePersister{
		db:     db,
		insert: "INSERT INTO " + store.QueueTable + " (" + store.QueueColumns + ") VALUES (" + params + ")",
	}
}

// LoadRecords returns every persisted command.
func (p *QueuePersister) LoadRecords(ctx context.Context) ([]queue.Record, error) {
	records, err := store.LoadQueueRecords(ctx, p.db)
	if err != nil {
		logger.FromContext(ctx).Error("failed to load queue records", "error", err)
		return nil, store.NewStoreError("queue_command", "load", "failed to load queue records", err)
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
		return store.NewStoreError("queue_command", "save", "failed to save queue records", err)
	}
	return nil
}
