package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	prev := logger
	t.Cleanup(func() { logger = prev })

	var buf bytes.Buffer
	SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	LoggerFromContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestSetLevelFiltersDebug(t *testing.T) {
	prev := logger
	t.Cleanup(func() {
		logger = prev
		SetLevel(slog.LevelInfo)
	})

	var buf bytes.Buffer
	SetOutput(&buf)

	Logger().Debug("hidden")
	assert.Zero(t, buf.Len())

	SetLevel(slog.LevelDebug)
	Logger().Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
