package strategy

import (
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/redact"
)

// Outcome is the verdict of one strategy run.
type Outcome int

const (
	Success Outcome = iota
	SoftFailure
	HardFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case SoftFailure:
		return "soft-failure"
	case HardFailure:
		return "hard-failure"
	default:
		return "unknown"
	}
}

// Execution is the per-attempt context handed to a strategy.
type Execution struct {
	Command  *command.Command
	Account  command.Account
	Timeline command.Timeline

	// Clock and DefaultRetries build chained follow-up commands.
	Clock          *command.Clock
	DefaultRetries int

	// OnProgress receives progress text; may be nil.
	OnProgress func(text string)
}

// Result is the result of the command being executed.
func (e *Execution) Result() *command.Result {
	return &e.Command.Result
}

// Progress reports intermediate progress of the attempt.
func (e *Execution) Progress(text string) {
	if e.OnProgress != nil {
		e.OnProgress(text)
	}
}

// Chain schedules a follow-up command to be enqueued when this attempt
// succeeds. It returns nil when the execution has no clock.
func (e *Execution) Chain(kind command.Kind, target command.TimelineRef) *command.Command {
	if e.Clock == nil {
		return nil
	}
	next := command.New(kind, target, command.Options{InForeground: e.Command.InForeground}, e.Clock, e.DefaultRetries)
	e.Result().SetFollowUp(next)
	return next
}

// Fail records err on the result and returns the matching outcome.
func (e *Execution) Fail(err error) Outcome {
	kind := Classify(err)
	e.Result().AddFailure(kind, redact.Error(err))
	if kind == command.IOFailure {
		return SoftFailure
	}
	return HardFailure
}

// finish converts a collaborator error into an outcome.
func (e *Execution) finish(err error) Outcome {
	if err != nil {
		return e.Fail(err)
	}
	return Success
}

func (e *Execution) apply(stats FetchStats) {
	r := e.Result()
	r.AddDownloaded(stats.Downloaded)
	r.AddNew(stats.New)
	n := stats.Notifications
	r.AddNotification(command.NotificationMention, n.Mentions)
	r.AddNotification(command.NotificationPrivate, n.Private)
	r.AddNotification(command.NotificationLike, n.Likes)
	r.AddNotification(command.NotificationAnnounce, n.Announces)
	r.AddNotification(command.NotificationFollow, n.Follows)
	r.AddNotification(command.NotificationHome, n.Home)
}
