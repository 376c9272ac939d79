package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter stores registered handlers in memory and dispatches
// events to them in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the first error encountered will be returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *Event) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// NewLogHandler returns a handler that logs finished executions and state
// changes.
func NewLogHandler(logger *slog.Logger) EventHandler {
	log := logger.With("component", "event_log")
	return HandlerFunc(func(ctx context.Context, event *Event) error {
		switch event.Type {
		case AfterExecute:
			r := event.Result
			log.InfoContext(ctx, "command executed",
				"command_id", event.Command.CreatedAt,
				"command_kind", event.Command.Kind,
				"execution_count", r.ExecutionCount,
				"retries_left", r.RetriesLeft,
				"has_error", r.HasError(),
				"downloaded", r.DownloadedCount,
				"new", r.NewCount,
				"message", r.Message)
		case LifecycleStateChanged:
			log.InfoContext(ctx, "lifecycle state changed", "state", event.State)
		}
		return nil
	})
}
