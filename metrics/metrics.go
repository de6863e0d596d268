package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_events_written_total",
			Help: "Total number of events durably written to the local log",
		},
		[]string{"event_type", "severity"},
	)

	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_events_recorded_total",
			Help: "Total number of events recorded through the telemetry facade",
		},
		[]string{"service", "event_type", "severity"},
	)

	BatchesCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outpost_batches_committed_total",
			Help: "Total number of event batches committed atomically",
		},
	)

	WriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outpost_write_failures_total",
			Help: "Total number of failed store mutations",
		},
		[]string{"operation"},
	)

	EventsForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outpost_events_forwarded_total",
			Help: "Total number of events marked as forwarded to an aggregator",
		},
	)

	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outpost_retention_deleted_total",
			Help: "Total number of forwarded events deleted by retention",
		},
	)

	Compactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outpost_compactions_total",
			Help: "Total number of store compaction passes",
		},
	)
)
