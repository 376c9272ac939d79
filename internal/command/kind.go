package command

import "github.com/phrazzld/commandq/internal/connectivity"

// Kind is the stable string code of a command operation. Codes are
// persisted and must stay backward compatible.
type Kind string

const (
	KindEmpty            Kind = "empty"
	KindFetchTimeline    Kind = "fetch-timeline"
	KindFetchOldTimeline Kind = "fetch-old-timeline"
	KindGetFollowers     Kind = "get-followers"
	KindGetFriends       Kind = "get-friends"
	KindGetConversation  Kind = "get-conversation"
	KindGetNote          Kind = "get-note"
	KindGetActor         Kind = "get-actor"
	KindGetOpenInstances Kind = "get-open-instances"
	KindFetchAttachment  Kind = "fetch-attachment"
	KindFetchAvatar      Kind = "fetch-avatar"
	KindUpdateNote       Kind = "update-note"
	KindDeleteNote       Kind = "delete-note"
	KindLike             Kind = "like"
	KindUndoLike         Kind = "undo-like"
	KindAnnounce         Kind = "announce"
	KindUndoAnnounce     Kind = "undo-announce"
	KindFollow           Kind = "follow"
	KindUndoFollow       Kind = "undo-follow"
	KindRateLimitStatus  Kind = "rate-limit-status"
	KindStopService      Kind = "stop-service"
	KindQueryState       Kind = "query-state"
)

// Slot names the executor pool slot that runs a command.
type Slot string

const (
	SlotGeneral   Slot = "general"
	SlotDownloads Slot = "downloads"
)

// Slots lists the pool slots in a fixed order.
var Slots = []Slot{SlotGeneral, SlotDownloads}

type kindInfo struct {
	priority    int
	requirement connectivity.Requirement
	slot        Slot
	// oneShot kinds are never retried automatically; the next periodic
	// sync covers a failed attempt.
	oneShot bool
	// control kinds are handled by the lifecycle controller and never queued.
	control bool
	// accountless kinds run without a resolved account.
	accountless bool
}

var kinds = map[Kind]kindInfo{
	KindEmpty:            {priority: 20, requirement: connectivity.Any, slot: SlotGeneral, accountless: true},
	KindFetchTimeline:    {priority: 4, requirement: connectivity.Sync, slot: SlotGeneral, oneShot: true},
	KindFetchOldTimeline: {priority: 5, requirement: connectivity.Sync, slot: SlotGeneral, oneShot: true},
	KindGetFollowers:     {priority: 6, requirement: connectivity.Sync, slot: SlotGeneral},
	KindGetFriends:       {priority: 6, requirement: connectivity.Sync, slot: SlotGeneral},
	KindGetConversation:  {priority: 7, requirement: connectivity.Sync, slot: SlotGeneral},
	KindGetNote:          {priority: 7, requirement: connectivity.Sync, slot: SlotGeneral},
	KindGetActor:         {priority: 7, requirement: connectivity.Sync, slot: SlotGeneral},
	KindGetOpenInstances: {priority: 12, requirement: connectivity.Sync, slot: SlotGeneral},
	KindFetchAttachment:  {priority: 9, requirement: connectivity.DownloadAttachment, slot: SlotDownloads},
	KindFetchAvatar:      {priority: 9, requirement: connectivity.Sync, slot: SlotDownloads},
	KindUpdateNote:       {priority: 2, requirement: connectivity.Sync, slot: SlotGeneral},
	KindDeleteNote:       {priority: 2, requirement: connectivity.Sync, slot: SlotGeneral},
	KindLike:             {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindUndoLike:         {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindAnnounce:         {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindUndoAnnounce:     {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindFollow:           {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindUndoFollow:       {priority: 3, requirement: connectivity.Sync, slot: SlotGeneral},
	KindRateLimitStatus:  {priority: 8, requirement: connectivity.Sync, slot: SlotGeneral},
	KindStopService:      {priority: 1, requirement: connectivity.Any, slot: SlotGeneral, control: true, accountless: true},
	KindQueryState:       {priority: 1, requirement: connectivity.Any, slot: SlotGeneral, control: true, accountless: true},
}

// ParseKind maps a persisted code to a Kind. Unknown codes map to KindEmpty
// so rows written by other versions still load; ok reports whether the code
// was recognized.
func ParseKind(code string) (k Kind, ok bool) {
	k = Kind(code)
	if _, found := kinds[k]; found {
		return k, true
	}
	return KindEmpty, false
}

// Kinds returns every known kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	return out
}

func (k Kind) info() kindInfo {
	if info, ok := kinds[k]; ok {
		return info
	}
	return kinds[KindEmpty]
}

// Priority is the tie-break hint of k; lower runs first.
func (k Kind) Priority() int { return k.info().priority }

// Requirement is the connectivity k needs.
func (k Kind) Requirement() connectivity.Requirement { return k.info().requirement }

// Slot is the executor slot that runs k.
func (k Kind) Slot() Slot { return k.info().slot }

// IsControl reports whether k is a lifecycle control request.
func (k Kind) IsControl() bool { return k.info().control }

// NeedsAccount reports whether k can only run for a valid account.
func (k Kind) NeedsAccount() bool { return !k.info().accountless }

// InitialRetries is the retry budget a new command of kind k starts with.
func (k Kind) InitialRetries(defaultRetries int) int {
	if k.info().oneShot {
		return 0
	}
	return defaultRetries
}

// IsTimelineFetch reports whether k downloads a timeline page.
func (k Kind) IsTimelineFetch() bool {
	return k == KindFetchTimeline || k == KindFetchOldTimeline
}
