package queue

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/commandq/internal/command"
)

// Record is the flat, persisted form of one queued command.
type Record struct {
	Queue            string
	Kind             string
	CreatedAt        int64
	TimelineID       int64
	TimelineType     string
	AccountID        int64
	ActorID          int64
	OriginID         int64
	ItemID           int64
	Priority         int
	InForeground     bool
	ManuallyLaunched bool

	ExecutionCount     int
	RetriesLeft        int
	LastExecutedAt     int64 // unix milliseconds, 0 when never executed
	Executed           bool
	NumAuthExceptions  int
	NumIOExceptions    int
	NumParseExceptions int
	Message            string
	DownloadedCount    int64
	NewCount           int64

	NotifyMentions  int64
	NotifyPrivate   int64
	NotifyLikes     int64
	NotifyAnnounces int64
	NotifyFollows   int64
	NotifyHome      int64
}

// Persister loads and saves the full contents of the persisted queues.
// SaveRecords replaces everything previously saved.
type Persister interface {
	LoadRecords(ctx context.Context) ([]Record, error)
	SaveRecords(ctx context.Context, records []Record) error
}

// NewRecord flattens cmd held in queue q.
func NewRecord(q Type, cmd *command.Command) Record {
	r := cmd.Result
	var lastExecuted int64
	if !r.LastExecutedAt.IsZero() {
		lastExecuted = r.LastExecutedAt.UnixMilli()
	}
	return Record{
		Queue:              string(q),
		Kind:               string(cmd.Kind),
		CreatedAt:          cmd.CreatedAt,
		TimelineID:         cmd.Target.TimelineID,
		TimelineType:       string(cmd.Target.TimelineType),
		AccountID:          cmd.Target.AccountID,
		ActorID:            cmd.Target.ActorID,
		OriginID:           cmd.Target.OriginID,
		ItemID:             cmd.Target.ItemID,
		Priority:           cmd.Priority,
		InForeground:       cmd.InForeground,
		ManuallyLaunched:   cmd.ManuallyLaunched,
		ExecutionCount:     r.ExecutionCount,
		RetriesLeft:        r.RetriesLeft,
		LastExecutedAt:     lastExecuted,
		Executed:           r.Executed,
		NumAuthExceptions:  r.NumAuthExceptions,
		NumIOExceptions:    r.NumIOExceptions,
		NumParseExceptions: r.NumParseExceptions,
		Message:            r.Message,
		DownloadedCount:    r.DownloadedCount,
		NewCount:           r.NewCount,
		NotifyMentions:     r.Notifications.Mentions,
		NotifyPrivate:      r.Notifications.Private,
		NotifyLikes:        r.Notifications.Likes,
		NotifyAnnounces:    r.Notifications.Announces,
		NotifyFollows:      r.Notifications.Follows,
		NotifyHome:         r.Notifications.Home,
	}
}

// Command rebuilds the command stored in r. Unknown kind codes become
// command.KindEmpty.
func (r Record) Command() *command.Command {
	kind, _ := command.ParseKind(r.Kind)
	var lastExecuted time.Time
	if r.LastExecutedAt != 0 {
		lastExecuted = time.UnixMilli(r.LastExecutedAt)
	}
	return &command.Command{
		Kind:      kind,
		CreatedAt: r.CreatedAt,
		Target: command.TimelineRef{
			TimelineID:   r.TimelineID,
			TimelineType: command.TimelineType(r.TimelineType),
			AccountID:    r.AccountID,
			ActorID:      r.ActorID,
			OriginID:     r.OriginID,
			ItemID:       r.ItemID,
		},
		Priority:         r.Priority,
		InForeground:     r.InForeground,
		ManuallyLaunched: r.ManuallyLaunched,
		Result: command.Result{
			ExecutionCount:     r.ExecutionCount,
			RetriesLeft:        r.RetriesLeft,
			LastExecutedAt:     lastExecuted,
			Executed:           r.Executed,
			NumAuthExceptions:  r.NumAuthExceptions,
			NumIOExceptions:    r.NumIOExceptions,
			NumParseExceptions: r.NumParseExceptions,
			Message:            r.Message,
			DownloadedCount:    r.DownloadedCount,
			NewCount:           r.NewCount,
			Notifications: command.Notifications{
				Mentions:  r.NotifyMentions,
				Private:   r.NotifyPrivate,
				Likes:     r.NotifyLikes,
				Announces: r.NotifyAnnounces,
				Follows:   r.NotifyFollows,
				Home:      r.NotifyHome,
			},
		},
	}
}

// MemoryPersister keeps records in memory. It backs the "memory" store
// driver and tests.
type MemoryPersister struct {
	mu      sync.Mutex
	records []Record
	saves   int
	saveErr error
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// LoadRecords implements Persister.
func (p *MemoryPersister) LoadRecords(_ context.Context) ([]Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, len(p.records))
	copy(out, p.records)
	return out, nil
}

// SaveRecords implements Persister.
func (p *MemoryPersister) SaveRecords(_ context.Context, records []Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.records = make([]Record, len(records))
	copy(p.records, records)
	p.saves++
	return nil
}

// Saves returns how many times SaveRecords succeeded.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// SetSaveErr makes subsequent SaveRecords calls fail with err (nil to reset).
func (p *MemoryPersister) SetSaveErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveErr = err
}
