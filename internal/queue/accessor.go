package queue

import (
	"sort"
	"time"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/connectivity"
)

// Accessor is one executor slot's view of the Store: its main queue plus
// its share of RETRY.
type Accessor struct {
	store      *Store
	slot       command.Slot
	checker    connectivity.Checker
	retryDelay time.Duration
}

// Accessor returns the view used by the executor of slot. Commands in RETRY
// become eligible retryDelay after their last attempt.
func (s *Store) Accessor(slot command.Slot, checker connectivity.Checker, retryDelay time.Duration) *Accessor {
	return &Accessor{store: s, slot: slot, checker: checker, retryDelay: retryDelay}
}

// Slot returns the slot this accessor serves.
func (a *Accessor) Slot() command.Slot {
	return a.slot
}

type candidate struct {
	cmd   *command.Command
	queue Type
}

// candidatesLocked lists the slot's idle commands in execution order:
// foreground first, then oldest first, priority breaking ties.
func (a *Accessor) candidatesLocked(now time.Time) []candidate {
	s := a.store
	var out []candidate
	for _, cmd := range s.queues[MainQueueFor(a.slot)] {
		if _, busy := s.inFlight[cmd.CreatedAt]; !busy {
			out = append(out, candidate{cmd: cmd, queue: MainQueueFor(a.slot)})
		}
	}
	for _, cmd := range s.queues[Retry] {
		if cmd.Kind.Slot() != a.slot {
			continue
		}
		if _, busy := s.inFlight[cmd.CreatedAt]; busy {
			continue
		}
		if now.Before(cmd.Result.LastExecutedAt.Add(a.retryDelay)) {
			continue
		}
		out = append(out, candidate{cmd: cmd, queue: Retry})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].cmd, out[j].cmd
		if ci.InForeground != cj.InForeground {
			return ci.InForeground
		}
		if ci.CreatedAt != cj.CreatedAt {
			return ci.CreatedAt < cj.CreatedAt
		}
		return ci.Priority < cj.Priority
	})
	return out
}

// DequeueNext returns a copy of the next command the slot should run, or
// nil when nothing is eligible. Commands whose connectivity requirement is
// unmet are moved to SKIPPED on the way. The returned command stays in its
// queue, marked in flight, until Finish, Requeue or Release; if the process
// dies meanwhile it runs again after restart.
func (a *Accessor) DequeueNext(now time.Time) *command.Command {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range a.candidatesLocked(now) {
		if !a.checker.Satisfied(c.cmd.Kind.Requirement()) {
			s.logger.Debug("skipping command, connectivity requirement unmet",
				"command_id", c.cmd.CreatedAt,
				"command_kind", c.cmd.Kind,
				"requirement", c.cmd.Kind.Requirement())
			s.removeLocked(c.cmd.CreatedAt)
			s.insertLocked(c.cmd, Skipped)
			continue
		}
		s.inFlight[c.cmd.CreatedAt] = a.slot
		return c.cmd.Clone()
	}
	return nil
}

// CountExecutableNow returns how many commands DequeueNext could hand out
// now. The count is advisory; a racing enqueue may be missed.
func (a *Accessor) CountExecutableNow(now time.Time) int {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range a.candidatesLocked(now) {
		if a.checker.Satisfied(c.cmd.Kind.Requirement()) {
			n++
		}
	}
	return n
}

// Requeue files an executed command into queue to, replacing the stored
// copy with cmd.
func (a *Accessor) Requeue(cmd *command.Command, to Type) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, cmd.CreatedAt)
	s.removeLocked(cmd.CreatedAt)
	s.insertLocked(cmd.Clone(), to)
}

// Finish drops a successfully executed command from all queues and files
// its follow-up, if any, into the follow-up's main queue.
func (a *Accessor) Finish(cmd *command.Command) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, cmd.CreatedAt)
	s.removeLocked(cmd.CreatedAt)
	if next := cmd.Result.FollowUp(); next != nil {
		s.removeLocked(next.CreatedAt)
		s.insertLocked(next.Clone(), MainQueueForKind(next.Kind))
	}
}

// Release abandons an attempt: the stored command is left untouched in its
// queue and becomes eligible again.
func (a *Accessor) Release(cmd *command.Command) {
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, cmd.CreatedAt)
}

// MoveSkippedToMain moves skipped commands that can run now back to their
// main queues.
func (a *Accessor) MoveSkippedToMain() int {
	return a.store.MoveSkippedToMain(a.checker)
}
