package core

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidV4Pattern = regexp.MustCompile(
	`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestNewCorrelationID_IsUUIDv4(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewCorrelationID()
		assert.Regexp(t, uuidV4Pattern, id)
		assert.False(t, seen[id], "IDs must not repeat")
		seen[id] = true
	}
}

func TestCorrelationID_ContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := CorrelationIDFrom(ctx)
	assert.False(t, ok, "bare context carries no correlation ID")

	id := NewCorrelationID()
	ctx = WithCorrelationID(ctx, id)

	got, ok := CorrelationIDFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestEnsureCorrelationID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		ctx, id := EnsureCorrelationID(context.Background())
		assert.Regexp(t, uuidV4Pattern, id)

		got, ok := CorrelationIDFrom(ctx)
		require.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("preserves an existing ID", func(t *testing.T) {
		existing := NewCorrelationID()
		parent := WithCorrelationID(context.Background(), existing)

		ctx, id := EnsureCorrelationID(parent)
		assert.Equal(t, existing, id)
		assert.Equal(t, parent, ctx, "context is returned unchanged when the ID is already set")
	})
}
