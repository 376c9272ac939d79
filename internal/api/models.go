package api

import (
	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/service"
)

// TargetRequest names the target of a submitted command by stable ids.
type TargetRequest struct {
	TimelineID   int64  `json:"timeline_id"   validate:"gte=0"`
	TimelineType string `json:"timeline_type" validate:"omitempty,oneof=home notifications private public search sent favorites followers friends everything drafts outbox"`
	AccountID    int64  `json:"account_id"    validate:"gte=0"`
	ActorID      int64  `json:"actor_id"      validate:"gte=0"`
	OriginID     int64  `json:"origin_id"     validate:"gte=0"`
	ItemID       int64  `json:"item_id"       validate:"gte=0"`
}

// Ref converts the request into a command target.
func (t TargetRequest) Ref() command.TimelineRef {
	return command.TimelineRef{
		TimelineID:   t.TimelineID,
		TimelineType: command.TimelineType(t.TimelineType),
		AccountID:    t.AccountID,
		ActorID:      t.ActorID,
		OriginID:     t.OriginID,
		ItemID:       t.ItemID,
	}
}

// SubmitCommandRequest defines the payload of POST /api/commands.
type SubmitCommandRequest struct {
	Kind             string        `json:"kind"              validate:"required"`
	Target           TargetRequest `json:"target"`
	InForeground     bool          `json:"in_foreground"`
	ManuallyLaunched bool          `json:"manually_launched"`
}

// SubmitCommandResponse identifies an accepted command.
type SubmitCommandResponse struct {
	CreatedAt int64  `json:"created_at"`
	Kind      string `json:"kind"`
}

// QueueCountsResponse is the body of GET /api/queues.
type QueueCountsResponse struct {
	Queues map[string]int `json:"queues"`
	Total  int            `json:"total"`
}

// QueueResponse is the body of GET /api/queues/{queue}.
type QueueResponse struct {
	Queue    string             `json:"queue"`
	Commands []*command.Command `json:"commands"`
}

// ClearQueueResponse is the body of DELETE /api/queues/error.
type ClearQueueResponse struct {
	Cleared int `json:"cleared"`
}

// StopRequest defines the payload of POST /api/service/stop.
type StopRequest struct {
	Force bool `json:"force"`
}

// StopResponse reports the state the engine reached.
type StopResponse struct {
	State service.State `json:"state"`
}
