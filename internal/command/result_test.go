package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResult_ClassificationInvariants walks a grid of counter values and
// checks that the classification predicates never contradict each other.
func TestResult_ClassificationInvariants(t *testing.T) {
	for auth := 0; auth <= 2; auth++ {
		for io := 0; io <= 2; io++ {
			for parse := 0; parse <= 2; parse++ {
				for retries := 0; retries <= 2; retries++ {
					for _, executed := range []bool{false, true} {
						r := Result{
							NumAuthExceptions:  auth,
							NumIOExceptions:    io,
							NumParseExceptions: parse,
							RetriesLeft:        retries,
							Executed:           executed,
						}
						assert.Equal(t, r.HasHardError() || r.HasSoftError(), r.HasError(), "%+v", r)
						if r.HasHardError() {
							assert.False(t, r.ShouldRetry(), "%+v", r)
						}
						if retries == 0 {
							assert.False(t, r.ShouldRetry(), "%+v", r)
						}
					}
				}
			}
		}
	}
}

func TestResult_ShouldRetry(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"never executed", Result{RetriesLeft: 1}, true},
		{"executed ok", Result{Executed: true, RetriesLeft: 3}, false},
		{"soft error", Result{Executed: true, RetriesLeft: 3, NumIOExceptions: 1}, true},
		{"soft error without budget", Result{Executed: true, NumIOExceptions: 1}, false},
		{"auth error", Result{Executed: true, RetriesLeft: 3, NumAuthExceptions: 1}, false},
		{"parse and io", Result{Executed: true, RetriesLeft: 3, NumIOExceptions: 1, NumParseExceptions: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.ShouldRetry())
		})
	}
}

// TestResult_RetryBudgetMonotonicity checks that a command starting with
// RetriesLeft=R stops being retried exactly at attempt R+1.
func TestResult_RetryBudgetMonotonicity(t *testing.T) {
	for budget := 0; budget <= 5; budget++ {
		r := Result{RetriesLeft: budget}
		now := time.Unix(1700000000, 0)
		stoppedAt := 0
		for attempt := 1; attempt <= budget+3; attempt++ {
			r.PrepareForLaunch(now)
			r.AddFailure(IOFailure, "timeout")
			if !r.ShouldRetry() {
				stoppedAt = attempt
				break
			}
		}
		assert.Equal(t, budget+1, stoppedAt, "budget %d", budget)
		assert.Equal(t, budget+1, r.ExecutionCount)
	}
}

func TestResult_HardErrorStopsImmediately(t *testing.T) {
	r := Result{RetriesLeft: 10}
	r.PrepareForLaunch(time.Now())
	r.AddFailure(AuthFailure, "401")

	assert.False(t, r.ShouldRetry())
	assert.True(t, r.HasError())
	assert.Equal(t, 1, r.ExecutionCount)
}

func TestResult_PrepareForLaunchResets(t *testing.T) {
	follow := &Command{Kind: KindFetchTimeline}
	r := Result{
		ExecutionCount:     2,
		RetriesLeft:        4,
		NumAuthExceptions:  1,
		NumIOExceptions:    2,
		NumParseExceptions: 3,
		Message:            "boom",
		DownloadedCount:    5,
		NewCount:           6,
		Notifications:      Notifications{Mentions: 1},
	}
	r.SetFollowUp(follow)
	now := time.Unix(1700000000, 0)

	r.PrepareForLaunch(now)

	assert.Equal(t, 3, r.ExecutionCount)
	assert.Equal(t, 3, r.RetriesLeft)
	assert.True(t, r.Executed)
	assert.Equal(t, now, r.LastExecutedAt)
	assert.False(t, r.HasError())
	assert.Empty(t, r.Message)
	assert.Zero(t, r.DownloadedCount)
	assert.Zero(t, r.NewCount)
	assert.Zero(t, r.Notifications.Total())
	assert.Nil(t, r.FollowUp())
}

func TestResult_Counters(t *testing.T) {
	var r Result
	r.AddDownloaded(3)
	r.AddNew(2)
	r.AddNotification(NotificationMention, 1)
	r.AddNotification(NotificationPrivate, 2)
	r.AddNotification(NotificationLike, 3)
	r.AddNotification(NotificationAnnounce, 4)
	r.AddNotification(NotificationFollow, 5)
	r.AddNotification(NotificationHome, 6)
	r.AddFailure(ParseFailure, "bad json")

	assert.Equal(t, int64(3), r.DownloadedCount)
	assert.Equal(t, int64(2), r.NewCount)
	assert.Equal(t, int64(21), r.Notifications.Total())
	assert.Equal(t, 1, r.NumParseExceptions)
	require.Equal(t, "bad json", r.Message)
	assert.Equal(t, "parse", ParseFailure.String())
}
