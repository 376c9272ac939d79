// Package logger provides structured logging for commandq.
//
// It builds a JSON log/slog logger from the configured level and carries
// execution-scoped loggers through context.Context.
package logger
