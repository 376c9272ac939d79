// Package service contains the lifecycle controller of the engine.
//
// The Controller is the single entry point callers use to hand work to the
// engine. It stages submitted commands, moves them into their main queues,
// keeps the executor pool and heartbeat alive while there is work, and winds
// the engine down once it has been idle for a while.
//
// Lifecycle:
//
//	STOPPED -> RUNNING -> STOPPING -> STOPPED
//
// A stop that finds an executor mid-command leaves the controller in
// STOPPING; the next heartbeat tick retries the stop. Every state change is
// broadcast as a lifecycle-state-changed event and passed to the Host.
//
// The Host port stands in for the process-level resource the engine holds
// while it runs (see internal/host).
package service
