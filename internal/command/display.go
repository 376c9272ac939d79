package command

var displayNames = map[Kind]string{
	KindEmpty:            "Empty",
	KindFetchTimeline:    "Syncing timeline",
	KindFetchOldTimeline: "Loading older messages",
	KindGetFollowers:     "Loading followers",
	KindGetFriends:       "Loading followed users",
	KindGetConversation:  "Loading conversation",
	KindGetNote:          "Loading note",
	KindGetActor:         "Loading user",
	KindGetOpenInstances: "Discovering open servers",
	KindFetchAttachment:  "Downloading attachment",
	KindFetchAvatar:      "Downloading avatar",
	KindUpdateNote:       "Sending note",
	KindDeleteNote:       "Deleting note",
	KindLike:             "Liking",
	KindUndoLike:         "Undoing like",
	KindAnnounce:         "Reblogging",
	KindUndoAnnounce:     "Undoing reblog",
	KindFollow:           "Following",
	KindUndoFollow:       "Unfollowing",
	KindRateLimitStatus:  "Checking rate limits",
	KindStopService:      "Stopping",
	KindQueryState:       "Querying state",
}

// DisplayName returns human-readable text for k, for CLI and HTTP output.
func DisplayName(k Kind) string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}
