// Package api is the HTTP control surface of the engine. It translates
// requests into Controller calls: submitting commands, inspecting and
// clearing queues, reading the lifecycle state and stopping the engine.
package api
