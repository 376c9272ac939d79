// Package events broadcasts engine activity to interested listeners.
//
// The executor emits an event before and after every command attempt and
// while a strategy reports progress; the lifecycle controller emits one on
// every state change. Handlers register with an EventEmitter and are called
// synchronously on the emitting goroutine, so they must return quickly.
package events
