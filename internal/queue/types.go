package queue

import (
	"errors"
	"fmt"

	"github.com/phrazzld/commandq/internal/command"
)

// ErrUnknownQueue is returned for a queue name that is not one of Types.
var ErrUnknownQueue = errors.New("unknown queue")

// Type names a queue.
type Type string

const (
	Current   Type = "current"
	Downloads Type = "downloads"
	Retry     Type = "retry"
	Error     Type = "error"
	Pre       Type = "pre"
	Skipped   Type = "skipped"
)

// Types lists every queue in display order.
var Types = []Type{Current, Downloads, Retry, Error, Pre, Skipped}

type properties struct {
	executable bool
	persisted  bool
	// replaceEquivalent queues keep at most one command per equivalence
	// key, so a flapping command does not pile up entries.
	replaceEquivalent bool
}

var queueProperties = map[Type]properties{
	Current:   {executable: true, persisted: true},
	Downloads: {executable: true, persisted: true},
	Retry:     {executable: true, persisted: true, replaceEquivalent: true},
	Error:     {persisted: true, replaceEquivalent: true},
	Pre:       {persisted: true},
	Skipped:   {persisted: true, replaceEquivalent: true},
}

// ParseType parses a queue name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := queueProperties[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownQueue, s)
	}
	return t, nil
}

// Executable reports whether executors drain t.
func (t Type) Executable() bool { return queueProperties[t].executable }

// Persisted reports whether t survives a restart.
func (t Type) Persisted() bool { return queueProperties[t].persisted }

// ReplacesEquivalent reports whether inserting into t evicts equivalent commands.
func (t Type) ReplacesEquivalent() bool { return queueProperties[t].replaceEquivalent }

// MainQueueFor is the executable queue drained by slot.
func MainQueueFor(slot command.Slot) Type {
	if slot == command.SlotDownloads {
		return Downloads
	}
	return Current
}

// MainQueueForKind is the executable queue new commands of kind k go to.
func MainQueueForKind(k command.Kind) Type {
	return MainQueueFor(k.Slot())
}
