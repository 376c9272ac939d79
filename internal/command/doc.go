// Package command defines the unit of work executed by the engine: a Command
// carrying its Kind, target references and an owned, mutable Result.
//
// Kinds are plain data looked up in a static table (priority, connectivity
// requirement, executor slot, retry policy). Target references are stable
// numeric ids resolved lazily through a Resolver at execution time.
package command
