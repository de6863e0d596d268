package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outpost/core"
	"outpost/storage"
)

func newRecorderTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store := storage.NewStore(filepath.Join(t.TempDir(), "events.db"), zap.NewNop().Sugar())
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func TestNewRecorder_RequiresConfiguration(t *testing.T) {
	store := newRecorderTestStore(t)
	logger := zap.NewNop().Sugar()

	_, err := NewRecorder(nil, "svc", "node", logger)
	assert.ErrorIs(t, err, storage.ErrNotConfigured)

	_, err = NewRecorder(store, "", "node", logger)
	assert.Error(t, err, "service name is required explicit configuration")

	_, err = NewRecorder(store, "svc", "", logger)
	assert.Error(t, err)

	r, err := NewRecorder(store, "svc", "node", logger)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestRecorder_NilRecorderReportsNotConfigured(t *testing.T) {
	var r *Recorder
	err := r.Record(context.Background(), core.EventTypeError, core.SeverityError, "boom", nil)
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestRecorder_Record_RoundTrip(t *testing.T) {
	store := newRecorderTestStore(t)
	r, err := NewRecorder(store, "sensor-agent", "node-01", zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, correlationID := core.EnsureCorrelationID(context.Background())
	md := map[string]interface{}{
		"attempt": float64(3),
		"ch":      make(chan int), // sanitized, not rejected
	}

	require.NoError(t, r.Record(ctx, core.EventTypeError, core.SeverityError, "disk read failed", md))

	events, err := store.FetchUnforwarded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "sensor-agent", e.ServiceName)
	assert.Equal(t, "node-01", e.NodeID)
	assert.Equal(t, core.EventTypeError, e.EventType)
	assert.Equal(t, core.SeverityError, e.Severity)
	assert.Equal(t, "disk read failed", e.Message)
	assert.Equal(t, correlationID, e.CorrelationID, "correlation ID from the context must be stamped")
	assert.Equal(t, float64(3), e.Metadata["attempt"])
	assert.IsType(t, "", e.Metadata["ch"], "unserializable metadata values are stringified")
}

func TestRecorder_Record_NoCorrelationWithoutContext(t *testing.T) {
	store := newRecorderTestStore(t)
	r, err := NewRecorder(store, "sensor-agent", "node-01", zap.NewNop().Sugar())
	require.NoError(t, err)

	require.NoError(t, r.Health(context.Background(), "up", nil))

	events, err := store.FetchUnforwarded(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].CorrelationID, "no ID is invented when the context carries none")
}

func TestRecorder_Record_InvokesMirror(t *testing.T) {
	store := newRecorderTestStore(t)
	r, err := NewRecorder(store, "sensor-agent", "node-01", zap.NewNop().Sugar())
	require.NoError(t, err)

	var mirrored []*core.Event
	r.Mirror = func(e *core.Event) { mirrored = append(mirrored, e) }

	require.NoError(t, r.Metric(context.Background(), "cpu 42%", nil))
	require.Len(t, mirrored, 1)
	assert.Greater(t, mirrored[0].ID, int64(0), "mirror sees the event after the ID is assigned")

	// A rejected event never reaches the mirror.
	err = r.Record(context.Background(), core.EventTypeError, "not-a-severity", "boom", nil)
	require.Error(t, err)
	assert.Len(t, mirrored, 1)
}

func TestRecorder_SeverityHelpers(t *testing.T) {
	store := newRecorderTestStore(t)
	r, err := NewRecorder(store, "sensor-agent", "node-01", zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Error(ctx, "e", nil))
	require.NoError(t, r.Critical(ctx, "c", nil))
	require.NoError(t, r.Health(ctx, "h", nil))
	require.NoError(t, r.Metric(ctx, "m", nil))

	events, err := store.FetchUnforwarded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 4)

	byMessage := map[string][2]string{}
	for _, e := range events {
		byMessage[e.Message] = [2]string{e.EventType, e.Severity}
	}
	assert.Equal(t, [2]string{core.EventTypeError, core.SeverityError}, byMessage["e"])
	assert.Equal(t, [2]string{core.EventTypeError, core.SeverityCritical}, byMessage["c"])
	assert.Equal(t, [2]string{core.EventTypeHealth, core.SeverityInfo}, byMessage["h"])
	assert.Equal(t, [2]string{core.EventTypeMetric, core.SeverityInfo}, byMessage["m"])
}
