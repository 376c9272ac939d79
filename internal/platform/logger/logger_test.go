package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/commandq/internal/config"
	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	tests := []struct {
		name       string
		level      string
		debugShown bool
		infoShown  bool
	}{
		{name: "debug", level: "debug", debugShown: true, infoShown: true},
		{name: "info", level: "info", debugShown: false, infoShown: true},
		{name: "error", level: "error", debugShown: false, infoShown: false},
		{name: "mixed case", level: "DEBUG", debugShown: true, infoShown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := logger.SetupWithWriter(config.ServerConfig{LogLevel: tt.level}, &buf)
			require.NotNil(t, l)

			l.Debug("debug message")
			l.Info("info message")

			assert.Equal(t, tt.debugShown, strings.Contains(buf.String(), "debug message"))
			assert.Equal(t, tt.infoShown, strings.Contains(buf.String(), "info message"))
		})
	}
}

func TestSetupWithWriter_InvalidLevel(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	l := logger.SetupWithWriter(config.ServerConfig{LogLevel: "chatty"}, &buf)
	l.Info("after setup")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var warning map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &warning))
	assert.Equal(t, "WARN", warning["level"])
	assert.Equal(t, "chatty", warning["configured_level"])
}

func TestFromContext(t *testing.T) {
	l, buf := logger.NewBufferLogger()
	ctx := logger.WithLogger(context.Background(), l.With("command_id", 42))

	logger.FromContext(ctx).Info("hello")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(42), entries[0]["command_id"])
}

func TestFromContextOrDefault(t *testing.T) {
	fallback := logger.Discard()

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))
}
