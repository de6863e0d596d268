package storage

import (
	"errors"
	"strings"
)

// Store error categories. Every failure an operation returns wraps exactly
// one of these, so callers can branch with errors.Is without parsing
// driver-specific messages.
var (
	// ErrInitialization is returned when the database file or its parent
	// directory cannot be prepared. Callers are expected to retry against a
	// fallback path.
	ErrInitialization = errors.New("store initialization failed")

	// ErrWrite is returned when a single-event write fails at any step
	// (open, prepare, bind, execute, close), including metadata
	// serialization failures.
	ErrWrite = errors.New("event write failed")

	// ErrBatchWrite is returned when any member of a batch fails. The whole
	// transaction is rolled back; no rows from the batch are visible.
	ErrBatchWrite = errors.New("batch write failed")

	// ErrRead is returned on query or metadata decode failure.
	ErrRead = errors.New("event read failed")

	// ErrMaintenance is returned when compaction fails.
	ErrMaintenance = errors.New("store maintenance failed")

	// ErrNotConfigured is returned by the recording facade when it is used
	// before a store has been configured.
	ErrNotConfigured = errors.New("event store not configured")
)

// IsRetryable reports whether err is lock contention another process will
// release. The store never retries internally; retry policy belongs to the
// caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
