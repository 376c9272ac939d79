package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/commandq/internal/command"
)

// Type names the kind of an event.
type Type string

const (
	BeforeExecute         Type = "before-execute"
	Progress              Type = "progress"
	AfterExecute          Type = "after-execute"
	LifecycleStateChanged Type = "lifecycle-state-changed"
)

// Event is one broadcast. Command and Result are snapshots; mutating them
// does not affect the engine.
type Event struct {
	ID   uuid.UUID `json:"id"`
	Type Type      `json:"type"`

	// Command is set for execution events.
	Command *command.Command `json:"command,omitempty"`
	// Result is the command's result at the time of the event.
	Result *command.Result `json:"result,omitempty"`
	// Text is the progress text of a Progress event.
	Text string `json:"text,omitempty"`
	// State is the lifecycle state of a LifecycleStateChanged event.
	State string `json:"state,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCommandEvent creates an execution event carrying a snapshot of cmd.
func NewCommandEvent(eventType Type, cmd *command.Command) *Event {
	snapshot := cmd.Clone()
	result := snapshot.Result
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Command:   snapshot,
		Result:    &result,
		CreatedAt: time.Now(),
	}
}

// NewProgressEvent creates a Progress event for cmd.
func NewProgressEvent(cmd *command.Command, text string) *Event {
	e := NewCommandEvent(Progress, cmd)
	e.Text = text
	return e
}

// NewStateEvent creates a LifecycleStateChanged event.
func NewStateEvent(state string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      LifecycleStateChanged,
		State:     state,
		CreatedAt: time.Now(),
	}
}

// EventHandler processes events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter publishes events to registered handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
