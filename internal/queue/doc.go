// Package queue holds pending, retrying, failed and parked commands in six
// named queues and hands them out to the executor slots.
//
// The Store is the only state shared between executors, the heartbeat and
// external callers; every operation takes one mutex. Commands go in and come
// out as copies, so a command being executed never aliases the stored one.
// A command identity lives in at most one queue at a time.
package queue
