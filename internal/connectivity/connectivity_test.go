package connectivity

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSatisfied(t *testing.T) {
	cellular := Policy{SyncOverCellular: true, DownloadAttachmentsOverCellular: true}
	wifiOnly := Policy{}

	tests := []struct {
		name   string
		req    Requirement
		class  Class
		policy Policy
		want   bool
	}{
		{"any offline", Any, Offline, wifiOnly, true},
		{"offline requirement offline", OfflineOnly, Offline, wifiOnly, true},
		{"offline requirement wifi", OfflineOnly, WiFi, wifiOnly, false},
		{"sync offline", Sync, Offline, cellular, false},
		{"sync wifi", Sync, WiFi, wifiOnly, true},
		{"sync cellular allowed", Sync, Online, cellular, true},
		{"sync cellular denied", Sync, Online, wifiOnly, false},
		{"download wifi", DownloadAttachment, WiFi, wifiOnly, true},
		{"download cellular allowed", DownloadAttachment, Online, cellular, true},
		{"download cellular denied", DownloadAttachment, Online, Policy{SyncOverCellular: true}, false},
		{"unknown requirement", Requirement("teleport"), WiFi, cellular, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Satisfied(tt.req, tt.class, tt.policy))
		})
	}
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass(" WiFi\n")
	require.NoError(t, err)
	assert.Equal(t, WiFi, c)

	_, err = ParseClass("satellite")
	assert.Error(t, err)
}

func TestMonitor_SetNotifiesOnChange(t *testing.T) {
	m := NewMonitor(Offline, Policy{SyncOverCellular: true}, testLogger())

	var calls atomic.Int32
	var last atomic.Value
	unsubscribe := m.Subscribe(func(previous, current Class) {
		calls.Add(1)
		last.Store(current)
	})

	assert.False(t, m.Satisfied(Sync))

	m.Set(Online)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Online, last.Load())
	assert.True(t, m.Satisfied(Sync))

	m.Set(Online)
	assert.Equal(t, int32(1), calls.Load(), "same class should not notify")

	unsubscribe()
	m.Set(WiFi)
	assert.Equal(t, int32(1), calls.Load(), "unsubscribed listener should not be called")
}

func TestMonitor_SetPolicy(t *testing.T) {
	m := NewMonitor(Online, Policy{}, testLogger())
	notified := make(chan struct{}, 1)
	m.Subscribe(func(previous, current Class) { notified <- struct{}{} })

	assert.False(t, m.Satisfied(DownloadAttachment))
	m.SetPolicy(Policy{DownloadAttachmentsOverCellular: true})

	assert.True(t, m.Satisfied(DownloadAttachment))
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("policy change was not reported")
	}
}

func TestFileWatcher_Refresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity")
	m := NewMonitor(Online, Policy{}, testLogger())
	w := NewFileWatcher(path, m, testLogger())

	require.NoError(t, w.Refresh(), "missing file is not an error")
	assert.Equal(t, Online, m.Class())

	require.NoError(t, os.WriteFile(path, []byte("offline\n"), 0o600))
	require.NoError(t, w.Refresh())
	assert.Equal(t, Offline, m.Class())

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	assert.Error(t, w.Refresh())
	assert.Equal(t, Offline, m.Class())
}

func TestFileWatcher_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectivity")
	require.NoError(t, os.WriteFile(path, []byte("wifi"), 0o600))

	m := NewMonitor(Offline, Policy{}, testLogger())
	w := NewFileWatcher(path, m, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return m.Class() == WiFi }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("offline"), 0o600))
	require.Eventually(t, func() bool { return m.Class() == Offline }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
