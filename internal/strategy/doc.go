// Package strategy selects and runs the business logic of a command.
//
// The concrete network work (timeline sync, actor lists, downloads, note
// actions) lives behind the collaborator ports in ports.go. Strategies in
// this package adapt a command to those ports and translate every failure
// into counters on the command's Result; no error escapes Execute.
package strategy
