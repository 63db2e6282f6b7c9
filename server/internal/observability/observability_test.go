package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rc := NewRequestContextWithID(logger, "req-1", "search.hybrid", 42)
	rc.Error("search failed", errors.New("boom"), slog.String(LogFieldErrorCode, "TIMEOUT"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search failed", entry["msg"])
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, float64(42), entry[LogFieldUserID])
	assert.Equal(t, "search.hybrid", entry[LogFieldOperation])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "TIMEOUT", entry[LogFieldErrorCode])
}

func TestRequestContext_GeneratesID(t *testing.T) {
	a := NewRequestContext(nil, "op", 1)
	b := NewRequestContextWithID(nil, "", "op", 1)
	assert.Len(t, a.RequestID, 36)
	assert.NotEmpty(t, b.RequestID)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestRequestContext_InContext(t *testing.T) {
	rc := NewRequestContext(nil, "op", 7)
	ctx := WithRequestContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "detector")

	rc := NewRequestContextWithID(nil, "req-9", "deduplication.detect", 3)
	ctx := WithRequestContext(context.Background(), rc)
	logger.InfoContext(ctx, "duplicate detection finished", "groups", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry[LogFieldRequestID])
	assert.Equal(t, float64(3), entry[LogFieldUserID])
	assert.Equal(t, "deduplication.detect", entry[LogFieldOperation])
	assert.Equal(t, "detector", entry["component"])
	assert.Equal(t, float64(2), entry["groups"])

	buf.Reset()
	logger.InfoContext(context.Background(), "worker tick")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, LogFieldRequestID)

	buf.Reset()
	logger.DebugContext(ctx, "below level")
	assert.Zero(t, buf.Len())
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("search.semantic", 10*time.Millisecond, false)
	m.RecordRequest("search.semantic", 30*time.Millisecond, true)
	m.RecordRequest("dedup.detect", 5*time.Millisecond, false)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestFailed)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)

	require.Len(t, snap.Operations, 2)
	assert.Equal(t, "dedup.detect", snap.Operations[0].Operation)
	semantic := snap.Operations[1]
	assert.Equal(t, int64(2), semantic.Count)
	assert.Equal(t, int64(1), semantic.ErrorCount)
	assert.Equal(t, int64(20), semantic.AverageDuration)

	assert.Equal(t, 100.0, NewMetrics().Snapshot().SuccessRate())
}
