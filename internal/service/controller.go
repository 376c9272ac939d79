package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/connectivity"
	"github.com/phrazzld/commandq/internal/events"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/task"
)

// State is the lifecycle state of the engine.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Host is the process-level resource the engine holds while it runs.
type Host interface {
	// AcquireResource is called before executors are started.
	AcquireResource(ctx context.Context) error
	// ReleaseResource is called once the engine has fully stopped.
	ReleaseResource(ctx context.Context) error
	// NotifyStateChanged reports every lifecycle state change.
	NotifyStateChanged(ctx context.Context, state string)
}

// Config holds the tunables of a Controller.
type Config struct {
	Executor  task.ExecutorConfig
	Heartbeat task.HeartbeatConfig

	// InactivityThreshold is how long the engine may sit idle before it stops.
	InactivityThreshold time.Duration
	// UnavailableBackoff is how long new work is refused after a manual
	// stop or a host failure.
	UnavailableBackoff time.Duration
	// RetryDelay is the minimum time between two attempts of a command in RETRY.
	RetryDelay time.Duration
	// DefaultRetries is the retry budget of new commands.
	DefaultRetries int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Executor:            task.DefaultExecutorConfig(),
		Heartbeat:           task.DefaultHeartbeatConfig(),
		InactivityThreshold: 10 * time.Second,
		UnavailableBackoff:  15 * time.Minute,
		RetryDelay:          30 * time.Second,
		DefaultRetries:      10,
	}
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store      *queue.Store
	Dispatcher task.Dispatcher
	Monitor    *connectivity.Monitor
	Host       Host
	// Emitter is optional.
	Emitter events.EventEmitter
}

// Status is a point-in-time view of the controller.
type Status struct {
	State             State              `json:"state"              yaml:"state"`
	Available         bool               `json:"available"          yaml:"available"`
	UnavailableUntil  *time.Time         `json:"unavailable_until"  yaml:"unavailable_until,omitempty"`
	UnavailableReason string             `json:"unavailable_reason" yaml:"unavailable_reason,omitempty"`
	Working           bool               `json:"working"            yaml:"working"`
	Connectivity      connectivity.Class `json:"connectivity"       yaml:"connectivity"`
	Queues            map[queue.Type]int `json:"queues"             yaml:"queues"`
}

// Controller owns the engine lifecycle: it accepts commands, starts the
// executor pool when there is work, and stops it when there is none.
type Controller struct {
	store   *queue.Store
	monitor *connectivity.Monitor
	host    Host
	emitter events.EventEmitter
	config  Config
	logger  *slog.Logger
	now     func() time.Time

	pool      *task.Pool
	heartbeat atomic.Pointer[task.Heartbeat]

	// base outlives individual requests; executors and the heartbeat run
	// under it.
	base       context.Context
	baseCancel context.CancelFunc

	// submitMu makes the duplicate check and the insert one step.
	submitMu sync.Mutex

	mu                sync.Mutex
	state             State
	initialized       atomic.Bool
	loaded            bool
	hostHeld          bool
	unsubscribe       func()
	lastBusy          time.Time
	unavailableUntil  time.Time
	unavailableReason string
	// pending holds state changes recorded under mu; unlock delivers them.
	pending []State
}

// NewController creates a stopped controller. It returns an error if any
// required dependency is missing.
func NewController(deps Deps, config Config, logger *slog.Logger) (*Controller, error) {
	switch {
	case deps.Store == nil:
		return nil, NewControllerError("create", "store cannot be nil", nil)
	case deps.Dispatcher == nil:
		return nil, NewControllerError("create", "dispatcher cannot be nil", nil)
	case deps.Monitor == nil:
		return nil, NewControllerError("create", "connectivity monitor cannot be nil", nil)
	case deps.Host == nil:
		return nil, NewControllerError("create", "host cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.Executor.DefaultRetries = config.DefaultRetries

	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:      deps.Store,
		monitor:    deps.Monitor,
		host:       deps.Host,
		emitter:    deps.Emitter,
		config:     config,
		logger:     logger.With(slog.String("component", "lifecycle_controller")),
		now:        time.Now,
		base:       base,
		baseCancel: cancel,
		state:      StateStopped,
	}

	pool, err := task.NewPool(task.PoolDeps{
		Sources: map[command.Slot]task.CommandSource{
			command.SlotGeneral:   deps.Store.Accessor(command.SlotGeneral, deps.Monitor, config.RetryDelay),
			command.SlotDownloads: deps.Store.Accessor(command.SlotDownloads, deps.Monitor, config.RetryDelay),
		},
		Dispatcher: deps.Dispatcher,
		Persister:  deps.Store,
		Emitter:    deps.Emitter,
		Clock:      deps.Store.Clock(),
		Wake:       c.wake,
	}, config.Executor, logger)
	if err != nil {
		cancel()
		return nil, NewControllerError("create", "failed to create executor pool", err)
	}
	c.pool = pool
	return c, nil
}

// Load reads the persisted queues. It is done at most once per controller;
// Submit and Trigger load on demand if the caller has not. Nothing is
// persisted before a load succeeded, so a failed load never overwrites
// stored work.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Controller) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	if err := c.store.Load(ctx); err != nil {
		return NewControllerError("load", "failed to load persisted queues", err)
	}
	c.loaded = true
	return nil
}

// Submit hands a command to the engine. Control kinds act on the
// lifecycle directly and are never queued. Other kinds are staged in PRE,
// persisted, and trigger an evaluation.
func (c *Controller) Submit(ctx context.Context, kind command.Kind, target command.TimelineRef, opts command.Options) (*command.Command, error) {
	if _, ok := command.ParseKind(string(kind)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	cmd := command.New(kind, target, opts, c.store.Clock(), c.config.DefaultRetries)
	log := c.logger.With("command_kind", kind, "command_id", cmd.CreatedAt)

	switch kind {
	case command.KindStopService:
		log.Info("stop requested")
		c.Stop(ctx, true)
		return cmd, nil
	case command.KindQueryState:
		c.broadcastState(ctx)
		return cmd, nil
	}

	if !c.IsAvailable(c.now()) {
		log.Debug("command rejected, engine unavailable")
		return nil, ErrUnavailable
	}

	if err := c.Load(ctx); err != nil {
		return nil, err
	}

	c.submitMu.Lock()
	if c.store.ContainsPending(cmd.Key()) {
		c.submitMu.Unlock()
		log.Debug("command rejected, equivalent command pending")
		return nil, ErrDuplicate
	}
	if err := c.store.Enqueue(cmd, queue.Pre); err != nil {
		c.submitMu.Unlock()
		return nil, NewControllerError("submit", "failed to stage command", err)
	}
	c.submitMu.Unlock()

	log.Info("command accepted")
	c.store.Persist(ctx)
	c.Trigger(ctx)
	return cmd, nil
}

// Trigger initializes the engine if needed and evaluates whether executors
// should run. Nothing happens while the engine is unavailable.
func (c *Controller) Trigger(ctx context.Context) {
	// A stop completed by the first pass may leave freshly staged work
	// behind; the second pass starts the engine again for it.
	for pass := 0; pass < 2; pass++ {
		if ctx.Err() != nil || c.base.Err() != nil {
			return
		}
		if !c.IsAvailable(c.now()) {
			c.logger.Debug("trigger ignored, engine unavailable")
			return
		}
		if err := c.initialize(ctx); err != nil {
			c.logger.Error("engine not started", "error", err)
			return
		}
		if !c.evaluate(ctx) {
			return
		}
	}
}

// wake is called by executors after they queued a follow-up command.
func (c *Controller) wake() {
	go c.Trigger(c.base)
}

func (c *Controller) initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return err
	}

	if !c.initialized.Load() {
		if moved := c.store.MoveSkippedToMain(c.monitor); moved > 0 {
			c.logger.Debug("released skipped commands", "count", moved)
		}
		c.unsubscribe = c.monitor.Subscribe(func(previous, current connectivity.Class) {
			go c.onConnectivityChanged(previous, current)
		})
		c.lastBusy = c.now()
		c.initialized.Store(true)
		c.logger.Debug("engine initialized")
	}

	task.EnsureHeartbeat(c.base, &c.heartbeat, c, c.config.Heartbeat, c.logger)
	return nil
}

// evaluate decides between running and stopping. It reports whether a stop
// completed while executable work was waiting.
func (c *Controller) evaluate(ctx context.Context) bool {
	c.mu.Lock()
	defer c.unlock(ctx)

	if moved := c.store.MovePreToMain(); moved > 0 {
		c.logger.Debug("moved staged commands to main queues", "count", moved)
	}

	now := c.now()
	executable := c.pool.CountExecutableNow(now)
	working := c.pool.IsWorking()
	if executable > 0 || working {
		c.lastBusy = now
	}

	switch {
	case c.state == StateStopping:
		c.stopLocked(ctx, false)
		return c.state == StateStopped && executable > 0
	case !c.initialized.Load():
		c.stopLocked(ctx, false)
		return false
	case !c.availableLocked(now):
		c.stopLocked(ctx, true)
		return false
	case executable == 0 && !working && now.Sub(c.lastBusy) > c.config.InactivityThreshold:
		c.logger.Debug("engine idle", "idle_for", now.Sub(c.lastBusy))
		c.stopLocked(ctx, false)
		return false
	}

	if executable == 0 {
		return false
	}

	if !c.hostHeld {
		if err := c.host.AcquireResource(ctx); err != nil {
			c.logger.Error("failed to acquire host resource", "error", err)
			c.markUnavailableLocked(fmt.Sprintf("host resource unavailable: %v", err))
			c.stopLocked(ctx, true)
			return false
		}
		c.hostHeld = true
	}

	task.EnsureHeartbeat(c.base, &c.heartbeat, c, c.config.Heartbeat, c.logger)
	c.pool.EnsureStarted(c.base)
	c.setStateLocked(StateRunning)
	return false
}

// Stop winds the engine down and opens the unavailable window. With
// forceNow, executors are cancelled mid-command; otherwise they finish
// their current command first and the stop completes on a later tick.
func (c *Controller) Stop(ctx context.Context, forceNow bool) State {
	c.mu.Lock()
	c.markUnavailableLocked("stop requested")
	c.stopLocked(ctx, forceNow)
	state := c.state
	c.unlock(ctx)
	return state
}

func (c *Controller) stopLocked(ctx context.Context, forceNow bool) {
	if c.state == StateStopped && !c.initialized.Load() && !c.hostHeld {
		return
	}
	if c.state != StateStopped {
		c.setStateLocked(StateStopping)
	}

	if !c.pool.Stop(forceNow) {
		c.logger.Debug("stop deferred, executor still working")
		return
	}

	// The caller's context may belong to the heartbeat being cancelled below.
	cleanup := context.WithoutCancel(ctx)
	if c.hostHeld {
		if err := c.host.ReleaseResource(cleanup); err != nil {
			c.logger.Warn("failed to release host resource", "error", err)
		}
		c.hostHeld = false
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.initialized.Store(false)
	c.store.Persist(cleanup)
	if hb := c.heartbeat.Load(); hb != nil {
		hb.Cancel()
	}
	c.setStateLocked(StateStopped)
}

// Shutdown force-stops the engine, waits for executors to exit and writes
// the queues a last time.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.stopLocked(ctx, true)
	c.unlock(ctx)

	err := c.pool.Wait(ctx)
	c.mu.Lock()
	if c.loaded {
		c.store.Persist(context.WithoutCancel(ctx))
	}
	c.mu.Unlock()
	c.baseCancel()
	if err != nil {
		return NewControllerError("shutdown", "executors did not exit in time", err)
	}
	c.logger.Info("engine shut down")
	return nil
}

// OnHeartbeat implements task.HeartbeatOwner.
func (c *Controller) OnHeartbeat(ctx context.Context) {
	if moved := c.store.MoveSkippedToMain(c.monitor); moved > 0 {
		c.logger.Debug("released skipped commands", "count", moved)
	}
	if c.evaluate(ctx) {
		c.Trigger(ctx)
	}
}

// IsInitialized implements task.HeartbeatOwner.
func (c *Controller) IsInitialized() bool {
	return c.initialized.Load()
}

func (c *Controller) onConnectivityChanged(previous, current connectivity.Class) {
	moved := c.store.MoveSkippedToMain(c.monitor)
	c.logger.Debug("re-evaluating after connectivity change",
		"previous", previous,
		"current", current,
		"released", moved)
	c.evaluate(c.base)
}

// MarkUnavailable refuses new work for the configured backoff window.
func (c *Controller) MarkUnavailable(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markUnavailableLocked(reason)
}

func (c *Controller) markUnavailableLocked(reason string) {
	c.unavailableUntil = c.now().Add(c.config.UnavailableBackoff)
	c.unavailableReason = reason
	c.logger.Warn("engine marked unavailable",
		"reason", reason,
		"until", c.unavailableUntil)
}

// IsAvailable reports whether new work is accepted at now.
func (c *Controller) IsAvailable(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availableLocked(now)
}

func (c *Controller) availableLocked(now time.Time) bool {
	return !now.Before(c.unavailableUntil)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	previous := c.state
	c.state = s
	c.pending = append(c.pending, s)
	c.logger.Info("lifecycle state changed", "previous", previous, "current", s)
}

// unlock releases mu, then reports the state changes made while it was
// held. Handlers may call back into the controller.
func (c *Controller) unlock(ctx context.Context) {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for _, s := range pending {
		c.notify(ctx, s)
	}
}

func (c *Controller) broadcastState(ctx context.Context) {
	c.notify(ctx, c.State())
}

func (c *Controller) notify(ctx context.Context, s State) {
	c.host.NotifyStateChanged(ctx, string(s))
	if c.emitter == nil {
		return
	}
	if err := c.emitter.EmitEvent(ctx, events.NewStateEvent(string(s))); err != nil {
		c.logger.Debug("state event handler failed", "error", err)
	}
}

// ClearErrorQueue drops every command in ERROR and returns how many were dropped.
func (c *Controller) ClearErrorQueue(ctx context.Context) (int, error) {
	if err := c.Load(ctx); err != nil {
		return 0, err
	}
	n := c.store.Clear(queue.Error)
	c.store.Persist(ctx)
	c.logger.Info("cleared error queue", "count", n)
	return n, nil
}

// QueueSnapshot returns copies of the commands in q, newest first.
func (c *Controller) QueueSnapshot(q queue.Type) ([]*command.Command, error) {
	if _, err := queue.ParseType(string(q)); err != nil {
		return nil, err
	}
	return c.store.Snapshot(q), nil
}

// Counts returns the number of commands per queue.
func (c *Controller) Counts() map[queue.Type]int {
	return c.store.Counts()
}

// Status returns a point-in-time view of the controller.
func (c *Controller) Status(now time.Time) Status {
	c.mu.Lock()
	st := Status{
		State:             c.state,
		Available:         c.availableLocked(now),
		UnavailableReason: c.unavailableReason,
	}
	if !st.Available {
		until := c.unavailableUntil
		st.UnavailableUntil = &until
	} else {
		st.UnavailableReason = ""
	}
	c.mu.Unlock()

	st.Working = c.pool.IsWorking()
	st.Connectivity = c.monitor.Class()
	st.Queues = c.store.Counts()
	return st
}
