package core

import (
	"context"

	"github.com/google/uuid"
)

// correlationKey is the private context key for correlation IDs.
type correlationKey struct{}

// NewCorrelationID generates a lowercase UUID v4 string. The store treats it
// as opaque text; it exists so that events written by different services on
// the same host can be tied to one distributed trace.
func NewCorrelationID() string {
	return uuid.New().String()
}

// WithCorrelationID returns a context carrying the given correlation ID.
// Propagation is always explicit through the call chain, never stashed in
// process-local state.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom extracts the correlation ID from ctx, if present.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation ID, otherwise a child context with a freshly generated one.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id, ok := CorrelationIDFrom(ctx); ok {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}
