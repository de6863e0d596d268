package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Severity levels accepted for events.
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Well-known event types. The store accepts any non-empty type; these are the
// ones the recorder emits.
const (
	EventTypeError  = "error"
	EventTypeHealth = "health"
	EventTypeMetric = "metric"
	EventTypeTest   = "test"
)

// Event is the single persisted entity of the event log. Events are
// append-only: after insert only the Forwarded flag ever changes, and it only
// moves from false to true.
type Event struct {
	ID            int64                  `json:"id"`
	Timestamp     int64                  `json:"timestamp"` // unix seconds; zero means "stamp at insert"
	ServiceName   string                 `json:"service_name" validate:"required"`
	NodeID        string                 `json:"node_id" validate:"required"`
	EventType     string                 `json:"event_type" validate:"required"`
	Severity      string                 `json:"severity" validate:"required,oneof=debug info warning error critical"`
	Message       string                 `json:"message" validate:"required"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Forwarded     bool                   `json:"forwarded"`
}

var validate = validator.New()

// Validate checks the required fields and the severity enum.
func (e *Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	return nil
}

// NewEvent creates an event stamped with the current time.
func NewEvent(serviceName, nodeID, eventType, severity, message string) *Event {
	return &Event{
		Timestamp:   time.Now().Unix(),
		ServiceName: serviceName,
		NodeID:      nodeID,
		EventType:   eventType,
		Severity:    severity,
		Message:     message,
	}
}
