package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/events"
)

// PoolDeps are the collaborators shared by the executors of a Pool.
type PoolDeps struct {
	// Sources holds one CommandSource per slot in command.Slots.
	Sources    map[command.Slot]CommandSource
	Dispatcher Dispatcher
	Persister  Persister
	Emitter    events.EventEmitter
	Clock      *command.Clock
	Wake       func()
}

// Pool keeps at most one QueueExecutor per slot.
type Pool struct {
	deps   PoolDeps
	config ExecutorConfig
	logger *slog.Logger
	now    func() time.Time

	slots map[command.Slot]*atomic.Pointer[QueueExecutor]
	wg    sync.WaitGroup
}

// NewPool creates a pool with empty slots. Every slot in command.Slots
// needs a source in deps.Sources.
func NewPool(deps PoolDeps, config ExecutorConfig, logger *slog.Logger) (*Pool, error) {
	slots := make(map[command.Slot]*atomic.Pointer[QueueExecutor], len(command.Slots))
	for _, slot := range command.Slots {
		src, ok := deps.Sources[slot]
		if !ok || src == nil {
			return nil, fmt.Errorf("no command source for slot %s", slot)
		}
		slots[slot] = &atomic.Pointer[QueueExecutor]{}
	}
	return &Pool{
		deps:   deps,
		config: config,
		logger: logger.With("component", "executor_pool"),
		now:    time.Now,
		slots:  slots,
	}, nil
}

// Owns implements Owner.
func (p *Pool) Owns(e *QueueExecutor) bool {
	return p.slots[e.Slot()].Load() == e
}

// Release implements Owner.
func (p *Pool) Release(e *QueueExecutor) {
	p.slots[e.Slot()].CompareAndSwap(e, nil)
}

// EnsureStarted makes sure every slot with executable work has a live
// executor. Executors started here run under ctx.
func (p *Pool) EnsureStarted(ctx context.Context) {
	now := p.now()
	for _, slot := range command.Slots {
		p.ensureSlot(ctx, slot, now)
	}
}

func (p *Pool) ensureSlot(ctx context.Context, slot command.Slot, now time.Time) {
	ptr := p.slots[slot]
	old := ptr.Load()
	if old != nil && !old.IsTerminated() && !old.IsStale(now) {
		return
	}

	src := p.deps.Sources[slot]
	var next *QueueExecutor
	if src.CountExecutableNow(now) > 0 {
		next = NewQueueExecutor(ExecutorDeps{
			Source:     src,
			Dispatcher: p.deps.Dispatcher,
			Persister:  p.deps.Persister,
			Emitter:    p.deps.Emitter,
			Clock:      p.deps.Clock,
			Owner:      p,
			Wake:       p.deps.Wake,
		}, p.config, p.logger)
	}
	if old == nil && next == nil {
		return
	}
	if !ptr.CompareAndSwap(old, next) {
		return
	}

	if old != nil && old.IsWorking() {
		p.logger.Warn("replacing stale executor",
			"slot", slot,
			"executor_id", old.ID(),
			"last_activity", old.LastActivity())
		old.Cancel()
	}
	if next != nil {
		p.wg.Add(1)
		next.Start(ctx)
		go func() {
			<-next.Done()
			p.wg.Done()
		}()
		p.logger.Debug("started executor", "slot", slot, "executor_id", next.ID())
	}
}

// Stop empties the slots. Idle slots are cleared at once. A working
// executor is cancelled when forceNow is set and otherwise asked to stop
// after its current command. Stop reports whether both slots are empty.
func (p *Pool) Stop(forceNow bool) bool {
	empty := true
	for _, slot := range command.Slots {
		ptr := p.slots[slot]
		e := ptr.Load()
		if e == nil {
			continue
		}
		switch {
		case !e.IsWorking():
			ptr.CompareAndSwap(e, nil)
			e.Cancel()
		case forceNow:
			e.Cancel()
			ptr.CompareAndSwap(e, nil)
		default:
			e.RequestStop()
		}
		if ptr.Load() != nil {
			empty = false
		}
	}
	return empty
}

// Wait blocks until every executor started by the pool has exited or ctx
// is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsWorking reports whether any slot holds a working executor.
func (p *Pool) IsWorking() bool {
	for _, slot := range command.Slots {
		if e := p.slots[slot].Load(); e != nil && e.IsWorking() {
			return true
		}
	}
	return false
}

// Executor returns the executor occupying slot, or nil.
func (p *Pool) Executor(slot command.Slot) *QueueExecutor {
	ptr, ok := p.slots[slot]
	if !ok {
		return nil
	}
	return ptr.Load()
}

// CountExecutableNow sums the executable commands of all slots.
func (p *Pool) CountExecutableNow(now time.Time) int {
	n := 0
	for _, slot := range command.Slots {
		n += p.deps.Sources[slot].CountExecutableNow(now)
	}
	return n
}

// LastActivity is the latest progress time of the occupying executors,
// or the zero time when both slots are empty.
func (p *Pool) LastActivity() time.Time {
	var latest time.Time
	for _, slot := range command.Slots {
		if e := p.slots[slot].Load(); e != nil {
			if t := e.LastActivity(); t.After(latest) {
				latest = t
			}
		}
	}
	return latest
}
