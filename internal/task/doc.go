// Package task runs queued commands in the background.
//
// A QueueExecutor drains the queues of one slot on its own goroutine. The
// Pool keeps at most one executor per slot and replaces drained or stalled
// ones. A low-frequency Heartbeat ticks the lifecycle controller so that a
// stalled executor is noticed and parked work gets picked up again.
package task
