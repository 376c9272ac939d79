package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/connectivity"
	"github.com/phrazzld/commandq/internal/events"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/strategy"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var always = connectivity.CheckerFunc(func(connectivity.Requirement) bool { return true })

var testAccount = command.Account{ID: 1, Name: "alice", Valid: true}

// actorsFunc adapts a function to strategy.ActorListFetcher.
type actorsFunc func(ctx context.Context) error

func (f actorsFunc) FetchActors(ctx context.Context, _ command.Account, _ int64, _ command.TimelineType) (strategy.FetchStats, error) {
	return strategy.FetchStats{}, f(ctx)
}

// downloadsFunc adapts a function to strategy.Downloader.
type downloadsFunc func(ctx context.Context) error

func (f downloadsFunc) Download(ctx context.Context, _ command.Account, _ command.Kind, _ int64) error {
	return f(ctx)
}

// notesFunc adapts a function to strategy.NoteActions.
type notesFunc func(ctx context.Context, kind command.Kind) error

func (f notesFunc) Perform(ctx context.Context, _ command.Account, kind command.Kind, _ command.TimelineRef) error {
	return f(ctx, kind)
}

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *eventRecorder) HandleEvent(_ context.Context, e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(t events.Type) []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store    *queue.Store
	clock    *command.Clock
	general  *queue.Accessor
	download *queue.Accessor
	recorder *eventRecorder
	emitter  *events.InMemoryEventEmitter
	disp     *strategy.Dispatcher
}

func newHarness(t *testing.T, ports strategy.Ports) *harness {
	t.Helper()
	logger := setupTestLogger()
	clock := command.NewClock()
	store := queue.NewStore(queue.NewMemoryPersister(), clock, logger)
	recorder := &eventRecorder{}
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(recorder)
	resolver := command.StaticResolver{Accounts: map[int64]command.Account{1: testAccount}}
	return &harness{
		store:    store,
		clock:    clock,
		general:  store.Accessor(command.SlotGeneral, always, 0),
		download: store.Accessor(command.SlotDownloads, always, 0),
		recorder: recorder,
		emitter:  emitter,
		disp:     strategy.NewDispatcher(ports, resolver, logger),
	}
}

func (h *harness) enqueue(t *testing.T, kind command.Kind, retries int) *command.Command {
	t.Helper()
	cmd := command.New(kind, command.TimelineRef{AccountID: 1, ItemID: 42}, command.Options{}, h.clock, retries)
	if err := h.store.Enqueue(cmd, queue.MainQueueForKind(kind)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return cmd
}

func (h *harness) executor(src CommandSource, config ExecutorConfig) *QueueExecutor {
	return NewQueueExecutor(ExecutorDeps{
		Source:     src,
		Dispatcher: h.disp,
		Persister:  h.store,
		Emitter:    h.emitter,
		Clock:      h.clock,
	}, config, setupTestLogger())
}

func (h *harness) pool(t *testing.T, config ExecutorConfig) *Pool {
	t.Helper()
	p, err := NewPool(PoolDeps{
		Sources: map[command.Slot]CommandSource{
			command.SlotGeneral:   h.general,
			command.SlotDownloads: h.download,
		},
		Dispatcher: h.disp,
		Persister:  h.store,
		Emitter:    h.emitter,
		Clock:      h.clock,
	}, config, setupTestLogger())
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p
}
