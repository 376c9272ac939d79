package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/config"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/service"
	"github.com/phrazzld/commandq/internal/service/auth"
	"github.com/phrazzld/commandq/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testSecret = "cli-test-secret-that-is-long-enough-for-hs256"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error"},
		Auth:   config.AuthConfig{JWTSecret: testSecret, TokenLifetime: time.Hour},
		Store:  config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "commandq.db")},
		Engine: config.EngineConfig{
			HeartbeatPeriod:        20 * time.Millisecond,
			HeartbeatMaxIterations: 1000,
			ExecutorBudget:         5 * time.Second,
			InactivityThreshold:    time.Hour,
			UnavailableBackoff:     time.Minute,
			DefaultRetries:         3,
		},
		Connectivity: config.ConnectivityConfig{Initial: "online", SyncOverCellular: true},
		Schedule:     config.ScheduleConfig{AccountIDs: []int64{1}},
	}
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommandWithOptions(&rootOptions{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
	})
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	_, err := runCLI(t, testConfig(t), "queues", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSubmitAndListQueues(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI(t, cfg, "submit", "--kind", "fetch-timeline", "--account", "1", "--timeline-type", "home")
	require.NoError(t, err)
	id, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	require.NoError(t, err)
	assert.Positive(t, id)

	out, err = runCLI(t, cfg, "queues", "--format", "yaml")
	require.NoError(t, err)

	var listing queueListing
	require.NoError(t, yaml.Unmarshal([]byte(out), &listing))
	assert.Equal(t, 1, listing.Total)
	require.Len(t, listing.Queues, len(queue.Types))
	for _, q := range listing.Queues {
		if q.Name != string(queue.Pre) {
			assert.Zero(t, q.Count, q.Name)
			continue
		}
		require.Len(t, q.Commands, 1)
		assert.Equal(t, id, q.Commands[0].CreatedAt)
		assert.Equal(t, command.KindFetchTimeline, q.Commands[0].Kind)
		assert.True(t, q.Commands[0].ManuallyLaunched)
	}

	out, err = runCLI(t, cfg, "queues", "--queue", "pre", "--counts")
	require.NoError(t, err)
	assert.Equal(t, "pre        1\ntotal      1\n", out)
}

func TestSubmitRejections(t *testing.T) {
	cfg := testConfig(t)

	_, err := runCLI(t, cfg, "submit", "--kind", "fetch-timeline", "--account", "1")
	require.NoError(t, err)
	_, err = runCLI(t, cfg, "submit", "--kind", "fetch-timeline", "--account", "1")
	assert.ErrorIs(t, err, service.ErrDuplicate)

	_, err = runCLI(t, cfg, "submit", "--kind", "make-coffee")
	assert.ErrorIs(t, err, service.ErrUnknownKind)

	_, err = runCLI(t, cfg, "submit", "--kind", "stop-service")
	assert.Error(t, err)

	_, err = runCLI(t, cfg, "queues", "--queue", "nowhere")
	assert.ErrorIs(t, err, queue.ErrUnknownQueue)
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)
	_, err := runCLI(t, cfg, "migrate")
	require.NoError(t, err)
	_, err = runCLI(t, cfg, "migrate", "status")
	require.NoError(t, err)

	cfg.Store = config.StoreConfig{Driver: "memory"}
	_, err = runCLI(t, cfg, "migrate")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI(t, cfg, "token", "--subject", "ops")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(cfg.Auth)
	require.NoError(t, err)
	claims, err := tokens.ValidateToken(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	cfg.Auth.JWTSecret = "short"
	_, err = runCLI(t, cfg, "token")
	assert.Error(t, err)
}

type fetchRecorder struct {
	calls chan command.Timeline
}

func (f *fetchRecorder) FetchTimeline(_ context.Context, _ command.Account, tl command.Timeline, _ bool) (strategy.FetchStats, error) {
	f.calls <- tl
	return strategy.FetchStats{Downloaded: 1}, nil
}

func TestRunServeResumesStagedWork(t *testing.T) {
	cfg := testConfig(t)
	_, err := runCLI(t, cfg, "submit", "--kind", "fetch-timeline", "--account", "1", "--timeline-type", "home")
	require.NoError(t, err)

	fetcher := &fetchRecorder{calls: make(chan command.Timeline, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, strategy.Ports{Timelines: fetcher}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	select {
	case tl := <-fetcher.calls:
		assert.Equal(t, command.TimelineHome, tl.Type)
		assert.Equal(t, int64(1), tl.AccountID)
	case <-time.After(5 * time.Second):
		t.Fatal("staged command was not executed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}

	// The command either finished or was released back to current by the
	// forced stop; it is never failed or duplicated.
	out, err := runCLI(t, cfg, "queues", "--counts", "--format", "yaml")
	require.NoError(t, err)
	var listing queueListing
	require.NoError(t, yaml.Unmarshal([]byte(out), &listing))
	assert.LessOrEqual(t, listing.Total, 1)
	for _, q := range listing.Queues {
		if q.Name == string(queue.Error) || q.Name == string(queue.Pre) {
			assert.Zero(t, q.Count, q.Name)
		}
	}
}
