package command

import (
	"context"
	"errors"
)

// ErrNotResolvable is returned by a Resolver when a reference no longer
// points at anything.
var ErrNotResolvable = errors.New("reference not resolvable")

// Account is the resolved account a command runs for.
type Account struct {
	ID       int64
	Name     string
	OriginID int64
	// Valid is false when the account exists but cannot be used, for
	// example because its credentials were revoked.
	Valid bool
}

// Timeline is the resolved target timeline of a command.
type Timeline struct {
	ID        int64
	Type      TimelineType
	AccountID int64
	ActorID   int64
	OriginID  int64
	// SearchQuery is set for TimelineSearch.
	SearchQuery string
}

// Resolver turns a command's stable ids into the objects a strategy needs.
// It is supplied by the owning context at execution time; commands never
// hold resolved objects.
type Resolver interface {
	ResolveAccount(ctx context.Context, accountID int64) (Account, error)
	ResolveTimeline(ctx context.Context, ref TimelineRef) (Timeline, error)
}

// StaticResolver resolves from in-memory maps. It backs tests and the CLI
// when no account database is attached.
type StaticResolver struct {
	Accounts  map[int64]Account
	Timelines map[int64]Timeline
}

// ResolveAccount implements Resolver.
func (r StaticResolver) ResolveAccount(_ context.Context, accountID int64) (Account, error) {
	if a, ok := r.Accounts[accountID]; ok {
		return a, nil
	}
	return Account{}, ErrNotResolvable
}

// ResolveTimeline implements Resolver. A ref without a known timeline id
// resolves to a timeline built from the ref itself.
func (r StaticResolver) ResolveTimeline(_ context.Context, ref TimelineRef) (Timeline, error) {
	if tl, ok := r.Timelines[ref.TimelineID]; ok {
		return tl, nil
	}
	if ref.TimelineID != 0 {
		return Timeline{}, ErrNotResolvable
	}
	return Timeline{
		Type:      ref.TimelineType,
		AccountID: ref.AccountID,
		ActorID:   ref.ActorID,
		OriginID:  ref.OriginID,
	}, nil
}
