package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/commandq/internal/command"
)

// Dispatcher picks the strategy for a command. Select is a pure function
// of the command kind, account validity and timeline type.
type Dispatcher struct {
	ports    Ports
	resolver command.Resolver
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher over ports. References are resolved
// through resolver.
func NewDispatcher(ports Ports, resolver command.Resolver, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ports:    ports,
		resolver: resolver,
		logger:   logger.With("component", "strategy_dispatcher"),
	}
}

// Resolve looks up the account and timeline of cmd. References that no
// longer resolve yield an invalid account and no error, so the command
// becomes a no-op; other lookup failures are returned.
func (d *Dispatcher) Resolve(ctx context.Context, cmd *command.Command) (command.Account, command.Timeline, error) {
	var account command.Account
	if cmd.Target.AccountID != 0 {
		a, err := d.resolver.ResolveAccount(ctx, cmd.Target.AccountID)
		switch {
		case errors.Is(err, command.ErrNotResolvable):
			return command.Account{ID: cmd.Target.AccountID}, command.Timeline{}, nil
		case err != nil:
			return command.Account{}, command.Timeline{}, fmt.Errorf("resolve account %d: %w", cmd.Target.AccountID, err)
		}
		account = a
	}

	timeline, err := d.resolver.ResolveTimeline(ctx, cmd.Target)
	switch {
	case errors.Is(err, command.ErrNotResolvable):
		return command.Account{ID: account.ID}, command.Timeline{}, nil
	case err != nil:
		return command.Account{}, command.Timeline{}, fmt.Errorf("resolve timeline %d: %w", cmd.Target.TimelineID, err)
	}
	return account, timeline, nil
}

// Select returns the strategy for cmd.
func (d *Dispatcher) Select(cmd *command.Command, account command.Account, timeline command.Timeline) Strategy {
	if cmd.Kind.NeedsAccount() && !account.Valid {
		d.logger.Info("account not usable, command skipped",
			"command_id", cmd.CreatedAt,
			"command_kind", cmd.Kind,
			"account_id", cmd.Target.AccountID)
		return NoOp{Reason: "account is not valid"}
	}

	p := d.ports
	switch cmd.Kind {
	case command.KindFetchAttachment, command.KindFetchAvatar:
		if p.Downloads != nil {
			return Download{Downloader: p.Downloads}
		}
	case command.KindGetOpenInstances:
		if p.Instances != nil {
			return OpenInstances{Discoverer: p.Instances}
		}
	case command.KindGetFollowers:
		if p.Actors != nil {
			return Actors{Fetcher: p.Actors, List: command.TimelineFollowers}
		}
	case command.KindGetFriends:
		if p.Actors != nil {
			return Actors{Fetcher: p.Actors, List: command.TimelineFriends}
		}
	case command.KindFetchTimeline, command.KindFetchOldTimeline:
		return Timeline{Fetcher: p.Timelines, Searcher: p.Search, Actors: p.Actors}
	case command.KindGetConversation, command.KindGetNote, command.KindGetActor,
		command.KindUpdateNote, command.KindDeleteNote,
		command.KindLike, command.KindUndoLike,
		command.KindAnnounce, command.KindUndoAnnounce,
		command.KindFollow, command.KindUndoFollow:
		if p.Notes != nil {
			return Action{Notes: p.Notes}
		}
	case command.KindRateLimitStatus:
		if p.RateLimits != nil {
			return RateLimit{Reporter: p.RateLimits}
		}
	case command.KindEmpty:
		return NoOp{}
	}
	return NoOp{Reason: fmt.Sprintf("no collaborator for %s", cmd.Kind)}
}
