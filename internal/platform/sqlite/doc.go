// Package sqlite persists the command queues in a local SQLite file using
// the pure-Go modernc driver. It is the default store for a single node.
package sqlite
