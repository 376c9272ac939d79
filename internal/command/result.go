package command

import "time"

// FailureKind classifies a failed execution attempt.
type FailureKind int

const (
	// AuthFailure means the credentials were rejected. Hard.
	AuthFailure FailureKind = iota + 1
	// ParseFailure means the response was unusable or the protocol was
	// violated. Hard.
	ParseFailure
	// IOFailure means a transient network or service problem. Soft.
	IOFailure
)

// String implements fmt.Stringer.
func (f FailureKind) String() string {
	switch f {
	case AuthFailure:
		return "auth"
	case ParseFailure:
		return "parse"
	case IOFailure:
		return "io"
	default:
		return "unknown"
	}
}

// NotificationKind names a per-kind notification counter.
type NotificationKind string

const (
	NotificationMention  NotificationKind = "mention"
	NotificationPrivate  NotificationKind = "private"
	NotificationLike     NotificationKind = "like"
	NotificationAnnounce NotificationKind = "announce"
	NotificationFollow   NotificationKind = "follow"
	NotificationHome     NotificationKind = "home"
)

// Notifications counts new items per notification kind found by one attempt.
type Notifications struct {
	Mentions  int64 `json:"mentions"  yaml:"mentions"`
	Private   int64 `json:"private"   yaml:"private"`
	Likes     int64 `json:"likes"     yaml:"likes"`
	Announces int64 `json:"announces" yaml:"announces"`
	Follows   int64 `json:"follows"   yaml:"follows"`
	Home      int64 `json:"home"      yaml:"home"`
}

// Total is the sum of all counters.
func (n Notifications) Total() int64 {
	return n.Mentions + n.Private + n.Likes + n.Announces + n.Follows + n.Home
}

// Result is the mutable outcome of a command's latest execution attempt
// plus its retry bookkeeping. It is owned by exactly one Command and mutated
// only by the executor running that command.
type Result struct {
	ExecutionCount     int           `json:"execution_count"      yaml:"execution_count"`
	RetriesLeft        int           `json:"retries_left"         yaml:"retries_left"`
	LastExecutedAt     time.Time     `json:"last_executed_at"     yaml:"last_executed_at"`
	Executed           bool          `json:"executed"             yaml:"executed"`
	NumAuthExceptions  int           `json:"num_auth_exceptions"  yaml:"num_auth_exceptions"`
	NumIOExceptions    int           `json:"num_io_exceptions"    yaml:"num_io_exceptions"`
	NumParseExceptions int           `json:"num_parse_exceptions" yaml:"num_parse_exceptions"`
	Message            string        `json:"message,omitempty"    yaml:"message,omitempty"`
	DownloadedCount    int64         `json:"downloaded_count"     yaml:"downloaded_count"`
	NewCount           int64         `json:"new_count"            yaml:"new_count"`
	Notifications      Notifications `json:"notifications"        yaml:"notifications"`

	// followUp is chained after a successful attempt. Not persisted.
	followUp *Command
}

// HasHardError reports a non-retriable failure.
func (r *Result) HasHardError() bool {
	return r.NumAuthExceptions > 0 || r.NumParseExceptions > 0
}

// HasSoftError reports a transient failure.
func (r *Result) HasSoftError() bool {
	return r.NumIOExceptions > 0
}

// HasError reports any failure.
func (r *Result) HasError() bool {
	return r.HasHardError() || r.HasSoftError()
}

// ShouldRetry reports whether the command belongs in the RETRY queue.
func (r *Result) ShouldRetry() bool {
	return (!r.Executed || r.HasError()) && !r.HasHardError() && r.RetriesLeft > 0
}

// PrepareForLaunch resets the per-attempt state before an execution.
// Every attempt after the first consumes one unit of the retry budget, so a
// command starting with RetriesLeft=R that keeps failing softly is retried
// R times and lands in ERROR after attempt R+1.
func (r *Result) PrepareForLaunch(now time.Time) {
	if r.ExecutionCount > 0 && r.RetriesLeft > 0 {
		r.RetriesLeft--
	}
	r.ExecutionCount++
	r.Executed = true
	r.LastExecutedAt = now
	r.NumAuthExceptions = 0
	r.NumIOExceptions = 0
	r.NumParseExceptions = 0
	r.Message = ""
	r.DownloadedCount = 0
	r.NewCount = 0
	r.Notifications = Notifications{}
	r.followUp = nil
}

// AddFailure records one failure of the given kind with its message.
func (r *Result) AddFailure(kind FailureKind, message string) {
	switch kind {
	case AuthFailure:
		r.NumAuthExceptions++
	case ParseFailure:
		r.NumParseExceptions++
	default:
		r.NumIOExceptions++
	}
	if message != "" {
		r.Message = message
	}
}

// AddDownloaded increments the downloaded item count.
func (r *Result) AddDownloaded(n int64) { r.DownloadedCount += n }

// AddNew increments the count of items new to the local store.
func (r *Result) AddNew(n int64) { r.NewCount += n }

// AddNotification increments the counter for kind.
func (r *Result) AddNotification(kind NotificationKind, n int64) {
	switch kind {
	case NotificationMention:
		r.Notifications.Mentions += n
	case NotificationPrivate:
		r.Notifications.Private += n
	case NotificationLike:
		r.Notifications.Likes += n
	case NotificationAnnounce:
		r.Notifications.Announces += n
	case NotificationFollow:
		r.Notifications.Follows += n
	case NotificationHome:
		r.Notifications.Home += n
	}
}

// SetFollowUp schedules cmd to be enqueued if this attempt succeeds.
func (r *Result) SetFollowUp(cmd *Command) { r.followUp = cmd }

// FollowUp returns the command chained by the latest attempt, if any.
func (r *Result) FollowUp() *Command { return r.followUp }
