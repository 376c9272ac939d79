// Package postgres persists the command queues in PostgreSQL through the
// pgx database/sql driver. It owns the PostgreSQL schema migrations and maps
// driver errors onto the sentinel errors of the internal/store package.
package postgres
