// Package forward implements the hand-off side of the event log: a drainer
// pulls unforwarded events in timestamp order, delivers them to a Sink, and
// marks them forwarded only after the sink accepts them. Transport to a real
// aggregator lives outside this module; implementations plug in through the
// Sink interface.
package forward

import (
	"context"

	"go.uber.org/zap"

	"outpost/core"
)

// Sink is the external-aggregator interface. Deliver must return nil only
// once the batch is durably in the aggregator's hands; on error the events
// stay unforwarded and are re-offered on the next drain cycle.
type Sink interface {
	Deliver(ctx context.Context, events []*core.Event) error
}

// LogSink writes each event to the process log. It exists for the CLI drain
// command and for wiring tests; it is not a durable aggregator.
type LogSink struct {
	Logger *zap.SugaredLogger
}

// Deliver logs every event in the batch.
func (ls *LogSink) Deliver(_ context.Context, events []*core.Event) error {
	for _, e := range events {
		ls.Logger.Infow("Event drained",
			"id", e.ID,
			"service", e.ServiceName,
			"node", e.NodeID,
			"type", e.EventType,
			"severity", e.Severity,
			"message", e.Message,
			"correlation_id", e.CorrelationID,
		)
	}
	return nil
}
