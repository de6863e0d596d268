// Package telemetry is the recording facade services use to append events.
// A Recorder is configured once with a store handle, a service name, and a
// node ID, then threaded explicitly to every call site — there is no ambient
// global to configure. Using a nil Recorder reports ErrNotConfigured instead
// of crashing.
package telemetry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"outpost/core"
	"outpost/storage"
)

// Recorder appends events for one service instance. ServiceName is required
// explicit configuration; it is never inferred from the runtime.
type Recorder struct {
	store       *storage.Store
	serviceName string
	nodeID      string
	logger      *zap.SugaredLogger

	// Mirror, when set, is invoked after every successful write so events
	// can be reflected into an external counter (e.g. a Prometheus
	// increment). It must not block.
	Mirror func(e *core.Event)
}

// NewRecorder creates a recorder bound to store. Both serviceName and nodeID
// must be non-empty.
func NewRecorder(store *storage.Store, serviceName, nodeID string, logger *zap.SugaredLogger) (*Recorder, error) {
	if store == nil {
		return nil, storage.ErrNotConfigured
	}
	if serviceName == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if nodeID == "" {
		return nil, fmt.Errorf("node ID is required")
	}
	return &Recorder{
		store:       store,
		serviceName: serviceName,
		nodeID:      nodeID,
		logger:      logger,
	}, nil
}

// Record validates, stamps, and durably appends one event. The correlation
// ID is taken from ctx when present; metadata is sanitized so non-JSON-safe
// values are stringified rather than rejected.
func (r *Recorder) Record(ctx context.Context, eventType, severity, message string, metadata map[string]interface{}) error {
	if r == nil || r.store == nil {
		return storage.ErrNotConfigured
	}

	e := core.NewEvent(r.serviceName, r.nodeID, eventType, severity, message)
	e.Metadata = core.SanitizeMetadata(metadata)
	if id, ok := core.CorrelationIDFrom(ctx); ok {
		e.CorrelationID = id
	}

	if err := r.store.WriteOne(ctx, e); err != nil {
		return err
	}

	if r.Mirror != nil {
		r.Mirror(e)
	}
	return nil
}

// Error records an error-severity error event.
func (r *Recorder) Error(ctx context.Context, message string, metadata map[string]interface{}) error {
	return r.Record(ctx, core.EventTypeError, core.SeverityError, message, metadata)
}

// Critical records a critical-severity error event.
func (r *Recorder) Critical(ctx context.Context, message string, metadata map[string]interface{}) error {
	return r.Record(ctx, core.EventTypeError, core.SeverityCritical, message, metadata)
}

// Health records an info-severity health event.
func (r *Recorder) Health(ctx context.Context, message string, metadata map[string]interface{}) error {
	return r.Record(ctx, core.EventTypeHealth, core.SeverityInfo, message, metadata)
}

// Metric records an info-severity metric event.
func (r *Recorder) Metric(ctx context.Context, message string, metadata map[string]interface{}) error {
	return r.Record(ctx, core.EventTypeMetric, core.SeverityInfo, message, metadata)
}
