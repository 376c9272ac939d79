// Package host provides the process-level resources the lifecycle
// controller holds while the engine runs.
//
// LockFileHost takes an exclusive flock on a file so that two engines never
// drain the same persisted queues at once. Nop is used when no lock file is
// configured.
package host
