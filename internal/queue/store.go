package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/connectivity"
)

// Store holds the six queues. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	queues   map[Type][]*command.Command
	inFlight map[int64]command.Slot

	// persistMu serializes Persist so an older snapshot never overwrites a newer one.
	persistMu sync.Mutex
	persister Persister
	clock     *command.Clock
	logger    *slog.Logger
}

// NewStore creates an empty store backed by persister. Identities loaded
// from persister are reported to clock.
func NewStore(persister Persister, clock *command.Clock, logger *slog.Logger) *Store {
	queues := make(map[Type][]*command.Command, len(Types))
	for _, t := range Types {
		queues[t] = nil
	}
	return &Store{
		queues:    queues,
		inFlight:  make(map[int64]command.Slot),
		persister: persister,
		clock:     clock,
		logger:    logger.With("component", "queue_store"),
	}
}

// Clock returns the identity clock of the store.
func (s *Store) Clock() *command.Clock {
	return s.clock
}

// Load replaces the in-memory queues with the persisted contents.
// Records naming an unknown queue are skipped.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.persister.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load queues: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range Types {
		s.queues[t] = nil
	}
	s.inFlight = make(map[int64]command.Slot)

	loaded := 0
	for _, rec := range records {
		t, err := ParseType(rec.Queue)
		if err != nil {
			s.logger.Warn("skipping persisted command in unknown queue",
				"queue", rec.Queue, "command_id", rec.CreatedAt)
			continue
		}
		cmd := rec.Command()
		s.clock.Observe(cmd.CreatedAt)
		s.insertLocked(cmd, t)
		loaded++
	}

	s.logger.Info("loaded queues", "commands", loaded)
	return nil
}

// Save writes the persisted queues through the persister and returns any error.
func (s *Store) Save(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	records := make([]Record, 0)
	for _, t := range Types {
		if !t.Persisted() {
			continue
		}
		for _, cmd := range s.queues[t] {
			records = append(records, NewRecord(t, cmd))
		}
	}
	s.mu.Unlock()

	if err := s.persister.SaveRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to save queues: %w", err)
	}
	return nil
}

// Persist is Save with best-effort semantics: failures are logged and
// swallowed, since the host process may die at any time and the next
// mutation batch persists again.
func (s *Store) Persist(ctx context.Context) {
	if err := s.Save(ctx); err != nil {
		s.logger.Error("failed to persist queues", "error", err)
	}
}

// Enqueue stores a copy of cmd in queue to, removing the same identity
// from every other queue first.
func (s *Store) Enqueue(cmd *command.Command, to Type) error {
	if _, err := ParseType(string(to)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(cmd.CreatedAt)
	s.insertLocked(cmd.Clone(), to)
	return nil
}

// Remove deletes the identity from every queue. It reports whether
// anything was removed.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
	return s.removeLocked(id)
}

// Find returns a copy of the command with identity id and its queue.
func (s *Store) Find(id int64) (*command.Command, Type, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range Types {
		for _, cmd := range s.queues[t] {
			if cmd.CreatedAt == id {
				return cmd.Clone(), t, true
			}
		}
	}
	return nil, "", false
}

// ContainsPending reports whether a command equivalent to key is waiting
// in any queue other than ERROR.
func (s *Store) ContainsPending(key command.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range Types {
		if t == Error {
			continue
		}
		for _, cmd := range s.queues[t] {
			if cmd.Key() == key {
				return true
			}
		}
	}
	return false
}

// MovePreToMain moves every staged command into its main queue and returns
// how many were moved.
func (s *Store) MovePreToMain() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.queues[Pre]
	s.queues[Pre] = nil
	for _, cmd := range staged {
		s.insertLocked(cmd, MainQueueForKind(cmd.Kind))
	}
	return len(staged)
}

// MoveSkippedToMain moves skipped commands whose connectivity requirement
// checker now accepts back to their main queue and returns how many moved.
func (s *Store) MoveSkippedToMain(checker connectivity.Checker) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keep []*command.Command
	var moved []*command.Command
	for _, cmd := range s.queues[Skipped] {
		if checker.Satisfied(cmd.Kind.Requirement()) {
			moved = append(moved, cmd)
		} else {
			keep = append(keep, cmd)
		}
	}
	s.queues[Skipped] = keep
	for _, cmd := range moved {
		s.insertLocked(cmd, MainQueueForKind(cmd.Kind))
	}
	return len(moved)
}

// Snapshot returns copies of the commands in t, newest first.
func (s *Store) Snapshot(t Type) []*command.Command {
	s.mu.Lock()
	out := make([]*command.Command, 0, len(s.queues[t]))
	for _, cmd := range s.queues[t] {
		out = append(out, cmd.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// Counts returns the number of commands per queue.
func (s *Store) Counts() map[Type]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Type]int, len(Types))
	for _, t := range Types {
		counts[t] = len(s.queues[t])
	}
	return counts
}

// Clear empties t, leaving in-flight commands in place, and returns how
// many commands were dropped.
func (s *Store) Clear(t Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keep []*command.Command
	dropped := 0
	for _, cmd := range s.queues[t] {
		if _, busy := s.inFlight[cmd.CreatedAt]; busy {
			keep = append(keep, cmd)
			continue
		}
		dropped++
	}
	s.queues[t] = keep
	return dropped
}

// InFlight returns the number of commands currently handed out to executors.
func (s *Store) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// insertLocked appends cmd to t. Replacing queues first evict idle
// equivalent commands.
func (s *Store) insertLocked(cmd *command.Command, t Type) {
	if t.ReplacesEquivalent() {
		key := cmd.Key()
		kept := s.queues[t][:0:0]
		for _, existing := range s.queues[t] {
			_, busy := s.inFlight[existing.CreatedAt]
			if existing.Key() == key && !busy {
				s.logger.Debug("replacing equivalent command",
					"queue", t,
					"replaced_id", existing.CreatedAt,
					"command_id", cmd.CreatedAt)
				continue
			}
			kept = append(kept, existing)
		}
		s.queues[t] = kept
	}
	s.queues[t] = append(s.queues[t], cmd)
}

func (s *Store) removeLocked(id int64) bool {
	for _, t := range Types {
		q := s.queues[t]
		for i, cmd := range q {
			if cmd.CreatedAt == id {
				s.queues[t] = append(q[:i:i], q[i+1:]...)
				return true
			}
		}
	}
	return false
}
