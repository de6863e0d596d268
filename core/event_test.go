package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Validate(t *testing.T) {
	valid := func() *Event {
		return &Event{
			Timestamp:   time.Now().Unix(),
			ServiceName: "sensor-agent",
			NodeID:      "node-01",
			EventType:   EventTypeError,
			Severity:    SeverityError,
			Message:     "disk read failed",
		}
	}

	require.NoError(t, valid().Validate())

	t.Run("rejects missing required fields", func(t *testing.T) {
		for name, mutate := range map[string]func(e *Event){
			"service name": func(e *Event) { e.ServiceName = "" },
			"node id":      func(e *Event) { e.NodeID = "" },
			"event type":   func(e *Event) { e.EventType = "" },
			"severity":     func(e *Event) { e.Severity = "" },
			"message":      func(e *Event) { e.Message = "" },
		} {
			e := valid()
			mutate(e)
			assert.Error(t, e.Validate(), "empty %s must fail validation", name)
		}
	})

	t.Run("severity enum", func(t *testing.T) {
		for _, sev := range []string{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical} {
			e := valid()
			e.Severity = sev
			assert.NoError(t, e.Validate())
		}

		e := valid()
		e.Severity = "fatal"
		assert.Error(t, e.Validate(), "severity outside the enum must fail")
	})

	t.Run("optional fields may be empty", func(t *testing.T) {
		e := valid()
		e.CorrelationID = ""
		e.Metadata = nil
		assert.NoError(t, e.Validate())
	})
}

func TestNewEvent_StampsCurrentTime(t *testing.T) {
	before := time.Now().Unix()
	e := NewEvent("sensor-agent", "node-01", EventTypeHealth, SeverityInfo, "up")
	after := time.Now().Unix()

	assert.GreaterOrEqual(t, e.Timestamp, before)
	assert.LessOrEqual(t, e.Timestamp, after)
	assert.False(t, e.Forwarded)
	require.NoError(t, e.Validate())
}
