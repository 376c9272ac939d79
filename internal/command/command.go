package command

import (
	"fmt"
	"time"
)

// TimelineType names the kind of timeline a command targets.
type TimelineType string

const (
	TimelineUnknown       TimelineType = ""
	TimelineHome          TimelineType = "home"
	TimelineNotifications TimelineType = "notifications"
	TimelinePrivate       TimelineType = "private"
	TimelinePublic        TimelineType = "public"
	TimelineSearch        TimelineType = "search"
	TimelineSent          TimelineType = "sent"
	TimelineFavorites     TimelineType = "favorites"
	TimelineFollowers     TimelineType = "followers"
	TimelineFriends       TimelineType = "friends"
	// TimelineEverything combines the timelines of all accounts.
	TimelineEverything TimelineType = "everything"
	// TimelineDrafts and TimelineOutbox exist only locally.
	TimelineDrafts TimelineType = "drafts"
	TimelineOutbox TimelineType = "outbox"
)

// IsSyncable reports whether a timeline of type t can be fetched from a server.
func (t TimelineType) IsSyncable() bool {
	switch t {
	case TimelineEverything, TimelineDrafts, TimelineOutbox, TimelineUnknown:
		return false
	default:
		return true
	}
}

// IsActorList reports whether t lists actors rather than notes.
func (t TimelineType) IsActorList() bool {
	return t == TimelineFollowers || t == TimelineFriends
}

// TimelineRef points at a command's targets by stable numeric ids.
// Zero means "not set". The ids are resolved lazily through a Resolver.
type TimelineRef struct {
	TimelineID   int64        `json:"timeline_id,omitempty"   yaml:"timeline_id,omitempty"`
	TimelineType TimelineType `json:"timeline_type,omitempty" yaml:"timeline_type,omitempty"`
	AccountID    int64        `json:"account_id,omitempty"    yaml:"account_id,omitempty"`
	ActorID      int64        `json:"actor_id,omitempty"      yaml:"actor_id,omitempty"`
	OriginID     int64        `json:"origin_id,omitempty"     yaml:"origin_id,omitempty"`
	ItemID       int64        `json:"item_id,omitempty"       yaml:"item_id,omitempty"`
}

// Options are the caller-supplied flags of a new command.
type Options struct {
	InForeground     bool
	ManuallyLaunched bool
}

// Key identifies equivalent commands: same kind against the same target.
// Two commands with equal keys do the same work.
type Key struct {
	Kind   Kind
	Target TimelineRef
}

// Command is one unit of work. CreatedAt is its identity and is unique
// across the queue store.
type Command struct {
	Kind             Kind        `json:"kind"              yaml:"kind"`
	CreatedAt        int64       `json:"created_at"        yaml:"created_at"`
	Target           TimelineRef `json:"target"            yaml:"target"`
	Priority         int         `json:"priority"          yaml:"priority"`
	InForeground     bool        `json:"in_foreground"     yaml:"in_foreground"`
	ManuallyLaunched bool        `json:"manually_launched" yaml:"manually_launched"`
	Result           Result      `json:"result"            yaml:"result"`
}

// New creates a command with a fresh identity from clock and the kind's
// initial retry budget.
func New(kind Kind, target TimelineRef, opts Options, clock *Clock, defaultRetries int) *Command {
	return &Command{
		Kind:             kind,
		CreatedAt:        clock.Next(),
		Target:           target,
		Priority:         kind.Priority(),
		InForeground:     opts.InForeground,
		ManuallyLaunched: opts.ManuallyLaunched,
		Result:           Result{RetriesLeft: kind.InitialRetries(defaultRetries)},
	}
}

// Key returns the equivalence key of c.
func (c *Command) Key() Key {
	return Key{Kind: c.Kind, Target: c.Target}
}

// Clone returns a deep copy of c, suitable for handing to listeners.
func (c *Command) Clone() *Command {
	if c == nil {
		return nil
	}
	out := *c
	if c.Result.followUp != nil {
		out.Result.followUp = c.Result.followUp.Clone()
	}
	return &out
}

// Created returns CreatedAt as a wall-clock time.
func (c *Command) Created() time.Time {
	return time.Unix(0, c.CreatedAt)
}

// String implements fmt.Stringer for log output.
func (c *Command) String() string {
	return fmt.Sprintf("%s#%d", c.Kind, c.CreatedAt)
}
