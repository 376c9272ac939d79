package task

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/events"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, e *QueueExecutor) {
	t.Helper()
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not terminate")
	}
}

func TestExecutor_SoftFailureRetriesThenErrors(t *testing.T) {
	calls := 0
	h := newHarness(t, strategy.Ports{Actors: actorsFunc(func(context.Context) error {
		calls++
		return &strategy.ConnectionError{StatusCode: 503}
	})})
	cmd := h.enqueue(t, command.KindGetFollowers, 2)

	e := h.executor(h.general, DefaultExecutorConfig())
	require.True(t, e.Start(context.Background()))
	waitDone(t, e)

	assert.Equal(t, 3, calls)
	assert.Equal(t, ReasonDrained, e.Reason())
	assert.Equal(t, StateTerminated, e.State())

	stored, q, ok := h.store.Find(cmd.CreatedAt)
	require.True(t, ok)
	assert.Equal(t, queue.Error, q)
	assert.Equal(t, 3, stored.Result.ExecutionCount)
	assert.Equal(t, 0, stored.Result.RetriesLeft)
	assert.Equal(t, 1, stored.Result.NumIOExceptions)

	after := h.recorder.ofType(events.AfterExecute)
	require.Len(t, after, 3)
	assert.Equal(t, []int{2, 1, 0}, []int{after[0].Result.RetriesLeft, after[1].Result.RetriesLeft, after[2].Result.RetriesLeft})
	assert.Len(t, h.recorder.ofType(events.BeforeExecute), 3)
}

func TestExecutor_HardFailureShortCircuits(t *testing.T) {
	calls := 0
	h := newHarness(t, strategy.Ports{Actors: actorsFunc(func(context.Context) error {
		calls++
		return &strategy.ConnectionError{StatusCode: 401}
	})})
	cmd := h.enqueue(t, command.KindGetFollowers, 5)

	e := h.executor(h.general, DefaultExecutorConfig())
	e.Start(context.Background())
	waitDone(t, e)

	assert.Equal(t, 1, calls)
	stored, q, ok := h.store.Find(cmd.CreatedAt)
	require.True(t, ok)
	assert.Equal(t, queue.Error, q)
	assert.Equal(t, 1, stored.Result.ExecutionCount)
	assert.Equal(t, 5, stored.Result.RetriesLeft)
	assert.Equal(t, 1, stored.Result.NumAuthExceptions)
}

func TestExecutor_SuccessRemovesAndChainsFollowUp(t *testing.T) {
	woke := make(chan struct{}, 1)
	h := newHarness(t, strategy.Ports{Notes: notesFunc(func(context.Context, command.Kind) error { return nil })})
	cmd := h.enqueue(t, command.KindUpdateNote, 10)

	e := NewQueueExecutor(ExecutorDeps{
		Source:     h.general,
		Dispatcher: h.disp,
		Persister:  h.store,
		Clock:      h.clock,
		Wake:       func() { woke <- struct{}{} },
	}, DefaultExecutorConfig(), setupTestLogger())
	e.Start(context.Background())
	waitDone(t, e)

	_, _, ok := h.store.Find(cmd.CreatedAt)
	assert.False(t, ok, "successful command is removed")

	// The chained home timeline fetch ran in the same loop and, with no
	// timeline collaborator, completed as a no-op.
	assert.Equal(t, 2, e.Executed())
	select {
	case <-woke:
	default:
		t.Fatal("wake not called for follow-up")
	}
}

func TestExecutor_PanicBecomesHardFailure(t *testing.T) {
	h := newHarness(t, strategy.Ports{Notes: notesFunc(func(context.Context, command.Kind) error {
		panic("nil map")
	})})
	cmd := h.enqueue(t, command.KindLike, 10)

	e := h.executor(h.general, DefaultExecutorConfig())
	e.Start(context.Background())
	waitDone(t, e)

	stored, q, ok := h.store.Find(cmd.CreatedAt)
	require.True(t, ok)
	assert.Equal(t, queue.Error, q)
	assert.Equal(t, 1, stored.Result.NumParseExceptions)
	assert.Contains(t, stored.Result.Message, "nil map")
}

// panicResolver fails every lookup by panicking.
type panicResolver struct{}

func (panicResolver) ResolveAccount(context.Context, int64) (command.Account, error) {
	panic("resolver bug")
}

func (panicResolver) ResolveTimeline(context.Context, command.TimelineRef) (command.Timeline, error) {
	panic("resolver bug")
}

func TestExecutor_ResolverPanicBecomesHardFailure(t *testing.T) {
	calls := 0
	h := newHarness(t, strategy.Ports{Notes: notesFunc(func(context.Context, command.Kind) error {
		calls++
		return nil
	})})
	h.disp = strategy.NewDispatcher(strategy.Ports{}, panicResolver{}, setupTestLogger())
	cmd := h.enqueue(t, command.KindLike, 10)
	next := h.enqueue(t, command.KindAnnounce, 10)

	e := h.executor(h.general, DefaultExecutorConfig())
	require.True(t, e.Start(context.Background()))
	waitDone(t, e)

	assert.Equal(t, ReasonDrained, e.Reason(), "the loop survives and drains the queue")
	assert.Equal(t, 0, calls, "no strategy runs without resolved references")
	for _, c := range []*command.Command{cmd, next} {
		stored, q, ok := h.store.Find(c.CreatedAt)
		require.True(t, ok)
		assert.Equal(t, queue.Error, q)
		assert.Equal(t, 1, stored.Result.ExecutionCount)
		assert.Equal(t, 1, stored.Result.NumParseExceptions)
		assert.Contains(t, stored.Result.Message, "resolver bug")
	}
	assert.Len(t, h.recorder.ofType(events.AfterExecute), 2)
}

func TestExecutor_CancelMidFlightReleases(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, strategy.Ports{Notes: notesFunc(func(ctx context.Context, _ command.Kind) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})})
	cmd := h.enqueue(t, command.KindLike, 10)

	e := h.executor(h.general, DefaultExecutorConfig())
	e.Start(context.Background())
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("strategy not started")
	}
	assert.True(t, e.IsWorking())

	e.Cancel()
	waitDone(t, e)

	assert.Equal(t, ReasonCancelled, e.Reason())
	assert.False(t, e.IsWorking())
	stored, q, ok := h.store.Find(cmd.CreatedAt)
	require.True(t, ok)
	assert.Equal(t, queue.Current, q)
	assert.Equal(t, 0, stored.Result.ExecutionCount, "released command is not classified")
	assert.Equal(t, 0, h.store.InFlight())
}

func TestExecutor_StopRequestFinishesCurrentCommand(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	h := newHarness(t, strategy.Ports{Notes: notesFunc(func(context.Context, command.Kind) error {
		started <- struct{}{}
		<-release
		return nil
	})})
	first := h.enqueue(t, command.KindLike, 10)
	second := h.enqueue(t, command.KindAnnounce, 10)

	e := h.executor(h.general, DefaultExecutorConfig())
	e.Start(context.Background())
	<-started

	e.RequestStop()
	assert.Equal(t, StateStopping, e.State())
	assert.True(t, e.IsWorking())
	close(release)
	waitDone(t, e)

	assert.Equal(t, ReasonStopRequested, e.Reason())
	_, _, ok := h.store.Find(first.CreatedAt)
	assert.False(t, ok)
	_, q, ok := h.store.Find(second.CreatedAt)
	require.True(t, ok)
	assert.Equal(t, queue.Current, q)
}

func TestExecutor_BudgetExceeded(t *testing.T) {
	h := newHarness(t, strategy.Ports{})
	cmd := h.enqueue(t, command.KindLike, 10)

	e := h.executor(h.general, ExecutorConfig{Budget: time.Nanosecond})
	e.Start(context.Background())
	waitDone(t, e)

	assert.Equal(t, ReasonBudgetExceeded, e.Reason())
	_, _, ok := h.store.Find(cmd.CreatedAt)
	assert.True(t, ok)
}

func TestExecutor_IsStale(t *testing.T) {
	h := newHarness(t, strategy.Ports{})
	e := h.executor(h.general, ExecutorConfig{Budget: time.Minute})

	now := time.Now()
	assert.False(t, e.IsStale(now))
	assert.True(t, e.IsStale(now.Add(2*time.Minute)))
	assert.False(t, e.IsWorking(), "idle executor is not working")
	assert.Equal(t, StateIdle, e.State())
}

func TestExecutor_StartOnce(t *testing.T) {
	h := newHarness(t, strategy.Ports{})
	e := h.executor(h.general, DefaultExecutorConfig())

	assert.True(t, e.Start(context.Background()))
	assert.False(t, e.Start(context.Background()))
	waitDone(t, e)
	assert.Equal(t, ReasonDrained, e.Reason())
}
