package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/events"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/strategy"
)

// ExecutorState is the lifecycle state of a QueueExecutor.
type ExecutorState int32

const (
	StateIdle ExecutorState = iota
	StateRunning
	StateDrained
	StateStopping
	StateStale
	StateTerminated
)

func (s ExecutorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	case StateStopping:
		return "stopping"
	case StateStale:
		return "stale"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TerminationReason says why an executor loop ended.
type TerminationReason string

const (
	ReasonNone           TerminationReason = ""
	ReasonDrained        TerminationReason = "drained"
	ReasonStopRequested  TerminationReason = "stop-requested"
	ReasonBudgetExceeded TerminationReason = "budget-exceeded"
	ReasonSuperseded     TerminationReason = "superseded"
	ReasonCancelled      TerminationReason = "cancelled"
)

// CommandSource is the executor's view of its queues. *queue.Accessor
// implements it.
type CommandSource interface {
	Slot() command.Slot
	DequeueNext(now time.Time) *command.Command
	CountExecutableNow(now time.Time) int
	Requeue(cmd *command.Command, to queue.Type)
	Finish(cmd *command.Command)
	Release(cmd *command.Command)
}

// Dispatcher resolves a command's references and picks its strategy.
// *strategy.Dispatcher implements it.
type Dispatcher interface {
	Resolve(ctx context.Context, cmd *command.Command) (command.Account, command.Timeline, error)
	Select(cmd *command.Command, account command.Account, timeline command.Timeline) strategy.Strategy
}

// Persister writes the queues after every attempt. *queue.Store implements it.
type Persister interface {
	Persist(ctx context.Context)
}

// Owner holds the slot an executor runs in.
type Owner interface {
	// Owns reports whether e still occupies its slot.
	Owns(e *QueueExecutor) bool
	// Release empties the slot if e still occupies it.
	Release(e *QueueExecutor)
}

// ExecutorConfig holds the tunables of a QueueExecutor.
type ExecutorConfig struct {
	// Budget bounds the wall-clock run time of one executor and is also
	// its staleness window.
	Budget time.Duration

	// DefaultRetries is the retry budget of chained follow-up commands.
	DefaultRetries int
}

// DefaultExecutorConfig returns an ExecutorConfig with reasonable defaults
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Budget:         60 * time.Second,
		DefaultRetries: 10,
	}
}

// ExecutorDeps are the collaborators of a QueueExecutor.
type ExecutorDeps struct {
	Source     CommandSource
	Dispatcher Dispatcher
	Persister  Persister
	Emitter    events.EventEmitter
	Clock      *command.Clock
	// Owner may be nil for an executor that always owns its slot.
	Owner Owner
	// Wake, if set, is called after a follow-up command was queued.
	Wake func()
}

// QueueExecutor drains the queues of one slot, one command at a time,
// until nothing is executable, its budget runs out, it is superseded or it
// is asked to stop.
type QueueExecutor struct {
	id     uuid.UUID
	slot   command.Slot
	deps   ExecutorDeps
	config ExecutorConfig
	logger *slog.Logger
	now    func() time.Time

	state         atomic.Int32
	stopRequested atomic.Bool
	lastActivity  atomic.Int64

	mu        sync.Mutex
	reason    TerminationReason
	startedAt time.Time
	cancel    context.CancelFunc
	ctx       context.Context
	done      chan struct{}
	executed  int
}

// NewQueueExecutor creates an idle executor for deps.Source's slot.
func NewQueueExecutor(deps ExecutorDeps, config ExecutorConfig, logger *slog.Logger) *QueueExecutor {
	if config.Budget <= 0 {
		config.Budget = DefaultExecutorConfig().Budget
	}
	id := uuid.New()
	e := &QueueExecutor{
		id:     id,
		slot:   deps.Source.Slot(),
		deps:   deps,
		config: config,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	e.logger = logger.With(
		"component", "queue_executor",
		"executor_id", id,
		"slot", e.slot)
	e.lastActivity.Store(e.now().UnixNano())
	return e
}

// ID returns the executor's identity.
func (e *QueueExecutor) ID() uuid.UUID { return e.id }

// Slot returns the slot the executor drains.
func (e *QueueExecutor) Slot() command.Slot { return e.slot }

// State returns the current lifecycle state.
func (e *QueueExecutor) State() ExecutorState { return ExecutorState(e.state.Load()) }

// Reason returns why the executor terminated, or ReasonNone while it runs.
func (e *QueueExecutor) Reason() TerminationReason {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// Executed returns how many commands the executor has run.
func (e *QueueExecutor) Executed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executed
}

// Done is closed when the loop has exited.
func (e *QueueExecutor) Done() <-chan struct{} { return e.done }

// LastActivity is the time of the last progress made by the executor.
func (e *QueueExecutor) LastActivity() time.Time {
	return time.Unix(0, e.lastActivity.Load())
}

// IsWorking reports whether the loop is running and not cancelled. An
// executor finishing its last command after a stop request still counts as
// working.
func (e *QueueExecutor) IsWorking() bool {
	switch e.State() {
	case StateRunning, StateStopping:
	default:
		return false
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	return ctx != nil && ctx.Err() == nil
}

// IsTerminated reports whether the loop has exited or is about to.
func (e *QueueExecutor) IsTerminated() bool {
	switch e.State() {
	case StateDrained, StateStale, StateTerminated:
		return true
	default:
		return false
	}
}

// IsStale reports whether the executor made no progress within its budget.
func (e *QueueExecutor) IsStale(now time.Time) bool {
	return now.Sub(e.LastActivity()) > e.config.Budget
}

// RequestStop asks the loop to exit after the current command.
func (e *QueueExecutor) RequestStop() {
	e.stopRequested.Store(true)
	e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
}

// Cancel aborts the loop. A command in flight is released, not classified.
func (e *QueueExecutor) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start launches the loop on a new goroutine. It returns false if the
// executor was already started.
func (e *QueueExecutor) Start(ctx context.Context) bool {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.ctx = runCtx
	e.cancel = cancel
	e.startedAt = e.now()
	e.mu.Unlock()
	e.touch()

	go e.run(runCtx)
	return true
}

func (e *QueueExecutor) touch() {
	e.lastActivity.Store(e.now().UnixNano())
}

func (e *QueueExecutor) run(ctx context.Context) {
	defer close(e.done)
	e.logger.Debug("executor started")

	for {
		if reason, ok := e.shouldExit(ctx); ok {
			e.terminate(reason)
			return
		}

		cmd := e.deps.Source.DequeueNext(e.now())
		if cmd == nil {
			e.state.Store(int32(StateDrained))
			e.terminate(ReasonDrained)
			return
		}

		e.execute(ctx, cmd)
	}
}

// shouldExit checks cancellation, stop request, budget and ownership, in
// that order.
func (e *QueueExecutor) shouldExit(ctx context.Context) (TerminationReason, bool) {
	if ctx.Err() != nil {
		return ReasonCancelled, true
	}
	if e.stopRequested.Load() {
		return ReasonStopRequested, true
	}
	e.mu.Lock()
	started := e.startedAt
	e.mu.Unlock()
	if e.now().Sub(started) > e.config.Budget {
		e.state.Store(int32(StateStale))
		return ReasonBudgetExceeded, true
	}
	if e.deps.Owner != nil && !e.deps.Owner.Owns(e) {
		return ReasonSuperseded, true
	}
	return ReasonNone, false
}

func (e *QueueExecutor) terminate(reason TerminationReason) {
	e.mu.Lock()
	e.reason = reason
	executed := e.executed
	cancel := e.cancel
	e.mu.Unlock()

	e.state.Store(int32(StateTerminated))
	if e.deps.Owner != nil {
		e.deps.Owner.Release(e)
	}
	if cancel != nil {
		cancel()
	}
	e.logger.Info("executor terminated", "reason", reason, "executed", executed)
}

// execute runs one attempt of cmd and files the command by its result.
func (e *QueueExecutor) execute(ctx context.Context, cmd *command.Command) {
	log := e.logger.With(
		"command_id", cmd.CreatedAt,
		"command_kind", cmd.Kind)

	exec := &strategy.Execution{
		Command:        cmd,
		Clock:          e.deps.Clock,
		DefaultRetries: e.config.DefaultRetries,
		OnProgress: func(text string) {
			e.touch()
			e.emit(ctx, events.NewProgressEvent(cmd, text))
		},
	}

	account, timeline, resolveErr := e.resolve(ctx, cmd)
	exec.Account = account
	exec.Timeline = timeline

	cmd.Result.PrepareForLaunch(e.now())
	e.touch()
	e.emit(ctx, events.NewCommandEvent(events.BeforeExecute, cmd))

	var outcome strategy.Outcome
	var panicked *resolverPanic
	switch {
	case errors.As(resolveErr, &panicked):
		log.Error("resolver panicked", "panic", panicked.value)
		cmd.Result.AddFailure(command.ParseFailure, panicked.Error())
		outcome = strategy.HardFailure
	case resolveErr != nil:
		outcome = exec.Fail(resolveErr)
	default:
		s := e.deps.Dispatcher.Select(cmd, account, timeline)
		log = log.With("strategy", s.Name())
		outcome = e.runStrategy(ctx, s, exec, log)
	}
	e.touch()

	if ctx.Err() != nil {
		log.Info("executor cancelled mid-command, command released")
		e.deps.Source.Release(cmd)
		return
	}

	r := &cmd.Result
	var to queue.Type
	switch {
	case r.ShouldRetry():
		to = queue.Retry
		e.deps.Source.Requeue(cmd, queue.Retry)
	case r.HasError():
		to = queue.Error
		e.deps.Source.Requeue(cmd, queue.Error)
	default:
		e.deps.Source.Finish(cmd)
	}

	e.mu.Lock()
	e.executed++
	e.mu.Unlock()

	log.Info("command attempt finished",
		"outcome", outcome,
		"queue", to,
		"execution_count", r.ExecutionCount,
		"retries_left", r.RetriesLeft)

	if e.deps.Persister != nil {
		e.deps.Persister.Persist(ctx)
	}
	e.emit(ctx, events.NewCommandEvent(events.AfterExecute, cmd))

	if to == "" && r.FollowUp() != nil && e.deps.Wake != nil {
		e.deps.Wake()
	}
}

// resolverPanic carries a panic recovered from reference resolution.
type resolverPanic struct {
	value any
}

func (p *resolverPanic) Error() string {
	return fmt.Sprintf("resolver panicked: %v", p.value)
}

// resolve looks up the references of cmd. A panic in the resolver comes
// back as a *resolverPanic.
func (e *QueueExecutor) resolve(ctx context.Context, cmd *command.Command) (account command.Account, timeline command.Timeline, err error) {
	defer func() {
		if p := recover(); p != nil {
			account, timeline, err = command.Account{}, command.Timeline{}, &resolverPanic{value: p}
		}
	}()
	return e.deps.Dispatcher.Resolve(ctx, cmd)
}

// runStrategy executes s, converting a panic into a hard failure of the
// command.
func (e *QueueExecutor) runStrategy(ctx context.Context, s strategy.Strategy, exec *strategy.Execution, log *slog.Logger) (outcome strategy.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("strategy panicked", "panic", p)
			exec.Result().AddFailure(command.ParseFailure, fmt.Sprintf("strategy panicked: %v", p))
			outcome = strategy.HardFailure
		}
	}()
	return s.Execute(ctx, exec)
}

func (e *QueueExecutor) emit(ctx context.Context, event *events.Event) {
	if e.deps.Emitter == nil {
		return
	}
	if err := e.deps.Emitter.EmitEvent(ctx, event); err != nil {
		e.logger.Debug("event handler failed", "event_type", event.Type, "error", err)
	}
}
