package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"catchup-relay/internal/handler/http/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────── ログレベル ───────── */

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"verbose", slog.LevelInfo}, // 未知の値は info に落とす
	}

	for _, tt := range tests {
		t.Run("LOG_LEVEL="+tt.raw, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.raw)
			assert.Equal(t, tt.want, LevelFromEnv())
		})
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger := NewLogger()

	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelWarn), "warn should be filtered at error level")
	assert.True(t, logger.Enabled(ctx, slog.LevelError), "error should pass at error level")
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	logger := NewLogger()

	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, slog.LevelDebug), "debug should be filtered by default")
	assert.True(t, logger.Enabled(ctx, slog.LevelInfo), "info should pass by default")
}

func TestNewTextLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := NewTextLogger()

	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

/* ───────── コンテキスト連携 ───────── */

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := requestid.WithRequestID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")

	WithRequestID(ctx, base).Info("delivery pass finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", entry["request_id"])
	assert.Equal(t, "delivery pass finished", entry["msg"])
}

func TestWithRequestID_NoID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithRequestID(context.Background(), base).Info("no request scope")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithFields(base, map[string]any{
		"feed":    "Go Blog",
		"channel": "discord-ja",
		"entries": 3,
	})
	logger.Info("entries delivered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Go Blog", entry["feed"])
	assert.Equal(t, "discord-ja", entry["channel"])
	assert.Equal(t, float64(3), entry["entries"])
}

func TestWithFields_Empty(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	WithFields(base, map[string]any{}).Info("plain entry")

	assert.Contains(t, buf.String(), "plain entry")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	stored := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), stored)

	FromContext(ctx).Info("through the context")

	assert.Contains(t, buf.String(), "through the context")
}

func TestFromContext_Missing(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), loggerContextKey, "not a logger")
	assert.Equal(t, slog.Default(), FromContext(ctx))
}

func BenchmarkWithFields(b *testing.B) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	fields := map[string]any{
		"feed":    "Go Blog",
		"channel": "discord-ja",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		WithFields(base, fields).Info("benchmark entry")
	}
}
