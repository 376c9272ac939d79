package strategy

import (
	"context"
	"fmt"

	"github.com/phrazzld/commandq/internal/command"
)

// Strategy runs the business logic of one command kind.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, exec *Execution) Outcome
}

// NoOp completes without doing anything, leaving reason as the message.
type NoOp struct {
	Reason string
}

func (NoOp) Name() string { return "no-op" }

func (s NoOp) Execute(_ context.Context, exec *Execution) Outcome {
	exec.Result().Message = s.Reason
	return Success
}

// Download fetches an attachment or avatar.
type Download struct {
	Downloader Downloader
}

func (Download) Name() string { return "download" }

func (s Download) Execute(ctx context.Context, exec *Execution) Outcome {
	cmd := exec.Command
	exec.Progress(fmt.Sprintf("downloading %s %d", command.DisplayName(cmd.Kind), cmd.Target.ItemID))
	if err := s.Downloader.Download(ctx, exec.Account, cmd.Kind, cmd.Target.ItemID); err != nil {
		return exec.Fail(err)
	}
	exec.Result().AddDownloaded(1)
	return Success
}

// OpenInstances refreshes the server instances of the command's origin.
type OpenInstances struct {
	Discoverer InstanceDiscoverer
}

func (OpenInstances) Name() string { return "open-instances" }

func (s OpenInstances) Execute(ctx context.Context, exec *Execution) Outcome {
	originID := exec.Command.Target.OriginID
	if originID == 0 {
		originID = exec.Account.OriginID
	}
	n, err := s.Discoverer.DiscoverInstances(ctx, originID)
	if err != nil {
		return exec.Fail(err)
	}
	exec.Result().AddDownloaded(int64(n))
	return Success
}

// Actors downloads a relationship list.
type Actors struct {
	Fetcher ActorListFetcher
	List    command.TimelineType
}

func (Actors) Name() string { return "actors" }

func (s Actors) Execute(ctx context.Context, exec *Execution) Outcome {
	actorID := exec.Timeline.ActorID
	if actorID == 0 {
		actorID = exec.Command.Target.ActorID
	}
	exec.Progress(fmt.Sprintf("loading %s of actor %d", s.List, actorID))
	stats, err := s.Fetcher.FetchActors(ctx, exec.Account, actorID, s.List)
	if err != nil {
		return exec.Fail(err)
	}
	exec.apply(stats)
	return Success
}

// Timeline syncs one timeline page, branching on the timeline type.
type Timeline struct {
	Fetcher  TimelineFetcher
	Searcher Searcher
	Actors   ActorListFetcher
}

func (Timeline) Name() string { return "timeline" }

func (s Timeline) Execute(ctx context.Context, exec *Execution) Outcome {
	tl := exec.Timeline
	switch {
	case tl.Type.IsActorList():
		if s.Actors == nil {
			return NoOp{Reason: "no actor list collaborator"}.Execute(ctx, exec)
		}
		return Actors{Fetcher: s.Actors, List: tl.Type}.Execute(ctx, exec)
	case tl.Type == command.TimelineSearch:
		if s.Searcher == nil {
			return NoOp{Reason: "no search collaborator"}.Execute(ctx, exec)
		}
		exec.Progress(fmt.Sprintf("searching %q", tl.SearchQuery))
		stats, err := s.Searcher.Search(ctx, exec.Account, tl)
		if err != nil {
			return exec.Fail(err)
		}
		exec.apply(stats)
		return Success
	case !tl.Type.IsSyncable():
		return NoOp{Reason: fmt.Sprintf("timeline type %q is not syncable", tl.Type)}.Execute(ctx, exec)
	}

	if s.Fetcher == nil {
		return NoOp{Reason: "no timeline collaborator"}.Execute(ctx, exec)
	}
	older := exec.Command.Kind == command.KindFetchOldTimeline
	exec.Progress(fmt.Sprintf("loading %s timeline", tl.Type))
	stats, err := s.Fetcher.FetchTimeline(ctx, exec.Account, tl, older)
	if err != nil {
		return exec.Fail(err)
	}
	exec.apply(stats)
	return Success
}

// Action performs a single-item request. A successful update-note chains a
// home timeline fetch for the same account.
type Action struct {
	Notes NoteActions
}

func (Action) Name() string { return "action" }

func (s Action) Execute(ctx context.Context, exec *Execution) Outcome {
	cmd := exec.Command
	exec.Progress(command.DisplayName(cmd.Kind))
	if err := s.Notes.Perform(ctx, exec.Account, cmd.Kind, cmd.Target); err != nil {
		return exec.Fail(err)
	}
	if cmd.Kind == command.KindUpdateNote {
		exec.Chain(command.KindFetchTimeline, command.TimelineRef{
			TimelineType: command.TimelineHome,
			AccountID:    exec.Account.ID,
		})
	}
	return Success
}

// RateLimit stores the account's rate-limit status as the result message.
type RateLimit struct {
	Reporter RateLimitReporter
}

func (RateLimit) Name() string { return "rate-limit" }

func (s RateLimit) Execute(ctx context.Context, exec *Execution) Outcome {
	status, err := s.Reporter.RateLimitStatus(ctx, exec.Account)
	if err != nil {
		return exec.Fail(err)
	}
	exec.Result().Message = status
	return Success
}
