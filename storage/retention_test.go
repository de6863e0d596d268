package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outpost/core"
)

func writeForwardedAt(t *testing.T, store *Store, ts int64) {
	t.Helper()

	e := &core.Event{
		Timestamp:   ts,
		ServiceName: "sensor-agent",
		NodeID:      "node-01",
		EventType:   core.EventTypeHealth,
		Severity:    core.SeverityInfo,
		Message:     "heartbeat ok",
	}
	require.NoError(t, store.WriteOne(context.Background(), e))
	require.NoError(t, store.MarkForwarded(context.Background(), []int64{e.ID}))
}

func TestRetentionManager_Cleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour).Unix()
	writeForwardedAt(t, store, old)
	writeForwardedAt(t, store, old)
	writeForwardedAt(t, store, time.Now().Unix())

	rm := NewRetentionManager(store, 24*time.Hour, time.Hour, false, zap.NewNop().Sugar())
	rm.Cleanup(ctx)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total, "only events inside the window survive")
}

func TestRetentionManager_Cleanup_CompactsWhenConfigured(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	writeForwardedAt(t, store, time.Now().Add(-48*time.Hour).Unix())

	rm := NewRetentionManager(store, 24*time.Hour, time.Hour, true, zap.NewNop().Sugar())
	rm.Cleanup(ctx)

	// Cleanup plus compaction must leave the store usable.
	require.NoError(t, store.WriteOne(ctx, testEvent()))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestRetentionManager_StartStop(t *testing.T) {
	store := newTestStore(t)

	writeForwardedAt(t, store, time.Now().Add(-48*time.Hour).Unix())

	rm := NewRetentionManager(store, 24*time.Hour, 10*time.Millisecond, false, zap.NewNop().Sugar())
	rm.Start()
	rm.Start() // second Start is a no-op

	assert.Eventually(t, func() bool {
		stats, err := store.Stats(context.Background())
		return err == nil && stats.Total == 0
	}, 2*time.Second, 20*time.Millisecond, "ticker-driven cleanup should delete the expired event")

	rm.Stop()
	rm.Stop() // second Stop is a no-op
}
