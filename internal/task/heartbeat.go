package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// HeartbeatOwner receives heartbeat ticks.
type HeartbeatOwner interface {
	// IsInitialized reports whether the owner is ready for ticks.
	IsInitialized() bool
	// OnHeartbeat re-evaluates the owner's work.
	OnHeartbeat(ctx context.Context)
}

// HeartbeatConfig holds the tunables of a Heartbeat.
type HeartbeatConfig struct {
	Period        time.Duration
	MaxIterations int
}

// DefaultHeartbeatConfig returns a HeartbeatConfig with reasonable defaults
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Period:        11 * time.Second,
		MaxIterations: 200,
	}
}

// Heartbeat ticks its owner at a low frequency so stalled executors are
// replaced and parked work is picked up. At most one heartbeat occupies a
// slot; a heartbeat that finds itself replaced exits. A heartbeat that
// reaches MaxIterations while its owner is still initialized hands the
// slot to a fresh one.
type Heartbeat struct {
	id     uuid.UUID
	owner  HeartbeatOwner
	slot   *atomic.Pointer[Heartbeat]
	config HeartbeatConfig
	base   *slog.Logger
	logger *slog.Logger
	now    func() time.Time

	lastTick   atomic.Int64
	iterations atomic.Int64
	started    atomic.Bool

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	reason string
	done   chan struct{}
}

// NewHeartbeat creates a heartbeat that will occupy slot once started.
func NewHeartbeat(owner HeartbeatOwner, slot *atomic.Pointer[Heartbeat], config HeartbeatConfig, logger *slog.Logger) *Heartbeat {
	defaults := DefaultHeartbeatConfig()
	if config.Period <= 0 {
		config.Period = defaults.Period
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaults.MaxIterations
	}
	id := uuid.New()
	h := &Heartbeat{
		id:     id,
		owner:  owner,
		slot:   slot,
		config: config,
		base:   logger,
		logger: logger.With("component", "heartbeat", "heartbeat_id", id),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	h.lastTick.Store(h.now().UnixNano())
	return h
}

// EnsureHeartbeat keeps one live heartbeat in slot, replacing a missing,
// finished or stale one with a new heartbeat for owner. It returns the
// heartbeat occupying the slot afterwards.
func EnsureHeartbeat(ctx context.Context, slot *atomic.Pointer[Heartbeat], owner HeartbeatOwner, config HeartbeatConfig, logger *slog.Logger) *Heartbeat {
	old := slot.Load()
	if old != nil && !old.IsTerminated() && !old.IsStale(time.Now()) {
		return old
	}
	next := NewHeartbeat(owner, slot, config, logger)
	if !slot.CompareAndSwap(old, next) {
		return slot.Load()
	}
	if old != nil {
		old.Cancel()
	}
	next.Start(ctx)
	return next
}

// ID returns the heartbeat's identity.
func (h *Heartbeat) ID() uuid.UUID { return h.id }

// Iterations returns the number of ticks delivered so far.
func (h *Heartbeat) Iterations() int { return int(h.iterations.Load()) }

// Done is closed when the loop has exited.
func (h *Heartbeat) Done() <-chan struct{} { return h.done }

// Reason returns why the loop exited, or "" while it runs.
func (h *Heartbeat) Reason() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// IsTerminated reports whether the loop has exited.
func (h *Heartbeat) IsTerminated() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// IsStale reports whether the last tick is older than twice the period.
func (h *Heartbeat) IsStale(now time.Time) bool {
	return now.Sub(time.Unix(0, h.lastTick.Load())) > 2*h.config.Period
}

// Cancel stops the loop.
func (h *Heartbeat) Cancel() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start launches the loop. It returns false if already started.
func (h *Heartbeat) Start(ctx context.Context) bool {
	if !h.started.CompareAndSwap(false, true) {
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.parent = ctx
	h.cancel = cancel
	h.mu.Unlock()
	h.lastTick.Store(h.now().UnixNano())
	go h.run(runCtx)
	return true
}

func (h *Heartbeat) run(ctx context.Context) {
	ticker := time.NewTicker(h.config.Period)
	defer ticker.Stop()

	reason := "max-iterations"
	defer func() {
		h.mu.Lock()
		h.reason = reason
		parent, cancel := h.parent, h.cancel
		h.mu.Unlock()
		h.slot.CompareAndSwap(h, nil)
		cancel()
		close(h.done)
		h.logger.Debug("heartbeat terminated", "reason", reason, "iterations", h.Iterations())

		if reason == "max-iterations" && parent.Err() == nil && h.owner.IsInitialized() {
			if next := EnsureHeartbeat(parent, h.slot, h.owner, h.config, h.base); next != nil {
				h.logger.Debug("heartbeat rotated", "successor_id", next.ID())
			}
		}
	}()

	for i := 0; i < h.config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			reason = "cancelled"
			return
		case <-ticker.C:
		}

		h.lastTick.Store(h.now().UnixNano())
		switch {
		case h.owner == nil:
			reason = "owner-gone"
			return
		case !h.owner.IsInitialized():
			reason = "owner-uninitialized"
			return
		case h.slot.Load() != h:
			reason = "superseded"
			return
		}

		h.iterations.Add(1)
		h.owner.OnHeartbeat(ctx)
	}
}
