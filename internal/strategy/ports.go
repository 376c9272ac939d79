package strategy

import (
	"context"

	"github.com/phrazzld/commandq/internal/command"
)

// FetchStats summarizes one successful fetch.
type FetchStats struct {
	Downloaded    int64
	New           int64
	Notifications command.Notifications
}

// TimelineFetcher downloads one page of a timeline. older requests the page
// before the oldest item held locally.
type TimelineFetcher interface {
	FetchTimeline(ctx context.Context, account command.Account, timeline command.Timeline, older bool) (FetchStats, error)
}

// Searcher runs the query of a search timeline.
type Searcher interface {
	Search(ctx context.Context, account command.Account, timeline command.Timeline) (FetchStats, error)
}

// ActorListFetcher downloads the followers or friends of an actor.
type ActorListFetcher interface {
	FetchActors(ctx context.Context, account command.Account, actorID int64, list command.TimelineType) (FetchStats, error)
}

// Downloader fetches a file (attachment or avatar) identified by itemID.
type Downloader interface {
	Download(ctx context.Context, account command.Account, kind command.Kind, itemID int64) error
}

// InstanceDiscoverer refreshes the list of open server instances of an origin.
type InstanceDiscoverer interface {
	DiscoverInstances(ctx context.Context, originID int64) (int, error)
}

// NoteActions performs single-item requests: reading a note, actor or
// conversation, and the write actions (update, delete, like, announce,
// follow and their undos).
type NoteActions interface {
	Perform(ctx context.Context, account command.Account, kind command.Kind, target command.TimelineRef) error
}

// RateLimitReporter reads the account's remaining request budget.
type RateLimitReporter interface {
	RateLimitStatus(ctx context.Context, account command.Account) (string, error)
}

// Ports bundles the collaborators. A nil port turns the commands it serves
// into no-ops.
type Ports struct {
	Timelines  TimelineFetcher
	Search     Searcher
	Actors     ActorListFetcher
	Downloads  Downloader
	Instances  InstanceDiscoverer
	Notes      NoteActions
	RateLimits RateLimitReporter
}
