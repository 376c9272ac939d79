package connectivity

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Listener is notified after the connectivity class changes.
type Listener func(previous, current Class)

// Monitor holds the current connectivity class and policy and fans out
// change notifications. It is safe for concurrent use.
type Monitor struct {
	class  atomic.Value // Class
	policy atomic.Value // Policy

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener

	logger *slog.Logger
}

// NewMonitor creates a Monitor starting at the given class and policy.
func NewMonitor(initial Class, policy Policy, logger *slog.Logger) *Monitor {
	m := &Monitor{
		listeners: make(map[int]Listener),
		logger:    logger.With("component", "connectivity_monitor"),
	}
	m.class.Store(initial)
	m.policy.Store(policy)
	return m
}

// Class returns the current connectivity class.
func (m *Monitor) Class() Class {
	return m.class.Load().(Class)
}

// Policy returns the current policy flags.
func (m *Monitor) Policy() Policy {
	return m.policy.Load().(Policy)
}

// SetPolicy replaces the policy flags. A policy change is reported to
// listeners like a class change so parked commands get reconsidered.
func (m *Monitor) SetPolicy(p Policy) {
	m.policy.Store(p)
	c := m.Class()
	m.notify(c, c)
}

// Set changes the current class and notifies listeners when it differs.
func (m *Monitor) Set(c Class) {
	previous := m.class.Swap(c).(Class)
	if previous == c {
		return
	}
	m.logger.Info("connectivity changed", "previous", previous, "current", c)
	m.notify(previous, c)
}

// Satisfied implements Checker against the current class and policy.
func (m *Monitor) Satisfied(req Requirement) bool {
	return Satisfied(req, m.Class(), m.Policy())
}

// Subscribe registers l and returns a function that unregisters it.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) notify(previous, current Class) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(previous, current)
	}
}
