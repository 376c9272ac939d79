package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimelines struct {
	calls int
	older bool
	stats FetchStats
	err   error
}

func (f *fakeTimelines) FetchTimeline(_ context.Context, _ command.Account, _ command.Timeline, older bool) (FetchStats, error) {
	f.calls++
	f.older = older
	return f.stats, f.err
}

type fakeSearch struct{ calls int }

func (f *fakeSearch) Search(context.Context, command.Account, command.Timeline) (FetchStats, error) {
	f.calls++
	return FetchStats{New: 3}, nil
}

type fakeActors struct {
	list    command.TimelineType
	actorID int64
}

func (f *fakeActors) FetchActors(_ context.Context, _ command.Account, actorID int64, list command.TimelineType) (FetchStats, error) {
	f.list = list
	f.actorID = actorID
	return FetchStats{Downloaded: 40}, nil
}

type fakeDownloads struct{ err error }

func (f fakeDownloads) Download(context.Context, command.Account, command.Kind, int64) error { return f.err }

type fakeInstances struct{}

func (fakeInstances) DiscoverInstances(context.Context, int64) (int, error) { return 7, nil }

type fakeNotes struct{ kinds []command.Kind }

func (f *fakeNotes) Perform(_ context.Context, _ command.Account, kind command.Kind, _ command.TimelineRef) error {
	f.kinds = append(f.kinds, kind)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allPorts() Ports {
	return Ports{
		Timelines: &fakeTimelines{},
		Search:    &fakeSearch{},
		Actors:    &fakeActors{},
		Downloads: fakeDownloads{},
		Instances: fakeInstances{},
		Notes:     &fakeNotes{},
	}
}

var validAccount = command.Account{ID: 1, Name: "alice@example.org", Valid: true}

func TestDispatcherSelect(t *testing.T) {
	d := NewDispatcher(allPorts(), command.StaticResolver{}, testLogger())
	clock := command.NewClock()

	tests := []struct {
		kind    command.Kind
		account command.Account
		want    string
	}{
		{command.KindFetchAttachment, validAccount, "download"},
		{command.KindFetchAvatar, validAccount, "download"},
		{command.KindGetOpenInstances, validAccount, "open-instances"},
		{command.KindGetFollowers, validAccount, "actors"},
		{command.KindGetFriends, validAccount, "actors"},
		{command.KindFetchTimeline, validAccount, "timeline"},
		{command.KindFetchOldTimeline, validAccount, "timeline"},
		{command.KindLike, validAccount, "action"},
		{command.KindUpdateNote, validAccount, "action"},
		{command.KindGetConversation, validAccount, "action"},
		{command.KindRateLimitStatus, validAccount, "no-op"},
		{command.KindEmpty, command.Account{}, "no-op"},
		{command.KindLike, command.Account{ID: 1}, "no-op"},
		{command.KindFetchTimeline, command.Account{}, "no-op"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			cmd := command.New(tt.kind, command.TimelineRef{AccountID: tt.account.ID}, command.Options{}, clock, 10)
			assert.Equal(t, tt.want, d.Select(cmd, tt.account, command.Timeline{}).Name())
		})
	}
}

func TestDispatcherSelect_MissingPort(t *testing.T) {
	d := NewDispatcher(Ports{}, command.StaticResolver{}, testLogger())
	cmd := command.New(command.KindFetchAvatar, command.TimelineRef{AccountID: 1}, command.Options{}, command.NewClock(), 10)

	s := d.Select(cmd, validAccount, command.Timeline{})

	require.IsType(t, NoOp{}, s)
	assert.Contains(t, s.(NoOp).Reason, "fetch-avatar")
}

func TestDispatcherResolve(t *testing.T) {
	resolver := command.StaticResolver{
		Accounts:  map[int64]command.Account{1: validAccount},
		Timelines: map[int64]command.Timeline{5: {ID: 5, Type: command.TimelineSearch, AccountID: 1, SearchQuery: "golang"}},
	}
	d := NewDispatcher(allPorts(), resolver, testLogger())
	clock := command.NewClock()
	ctx := context.Background()

	cmd := command.New(command.KindFetchTimeline, command.TimelineRef{TimelineID: 5, AccountID: 1}, command.Options{}, clock, 10)
	account, timeline, err := d.Resolve(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, account.Valid)
	assert.Equal(t, "golang", timeline.SearchQuery)

	gone := command.New(command.KindLike, command.TimelineRef{AccountID: 9}, command.Options{}, clock, 10)
	account, _, err = d.Resolve(ctx, gone)
	require.NoError(t, err, "unresolvable references are not errors")
	assert.False(t, account.Valid)
	assert.Equal(t, "no-op", d.Select(gone, account, command.Timeline{}).Name())
}

type failingResolver struct{ command.StaticResolver }

func (failingResolver) ResolveAccount(context.Context, int64) (command.Account, error) {
	return command.Account{}, errors.New("database is locked")
}

func TestDispatcherResolve_Error(t *testing.T) {
	d := NewDispatcher(allPorts(), failingResolver{}, testLogger())
	cmd := command.New(command.KindLike, command.TimelineRef{AccountID: 1}, command.Options{}, command.NewClock(), 10)

	_, _, err := d.Resolve(context.Background(), cmd)

	assert.ErrorContains(t, err, "database is locked")
}
