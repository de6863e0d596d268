package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"outpost/core"
	"outpost/metrics"
)

const insertEventSQL = `
	INSERT INTO events (timestamp, service_name, node_id, event_type, severity, message, correlation_id, metadata, forwarded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
`

// WriteOne durably appends a single event. The forwarded flag always starts
// at 0 and is not settable by the caller. On success the event's ID and
// Timestamp are filled in. Any failure aborts the remaining steps and is
// returned wrapped in ErrWrite; SQLite's atomic statement execution
// guarantees no partial row.
func (s *Store) WriteOne(ctx context.Context, e *core.Event) error {
	if err := e.Validate(); err != nil {
		metrics.WriteFailures.WithLabelValues("write_one").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	metadataJSON, correlationID, err := encodeOptional(e)
	if err != nil {
		metrics.WriteFailures.WithLabelValues("write_one").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}

	db, err := s.open(ctx)
	if err != nil {
		metrics.WriteFailures.WithLabelValues("write_one").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	err = func() error {
		stmt, err := db.PrepareContext(ctx, insertEventSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		res, err := stmt.ExecContext(ctx,
			e.Timestamp,
			e.ServiceName,
			e.NodeID,
			e.EventType,
			e.Severity,
			e.Message,
			correlationID,
			metadataJSON,
		)
		if err != nil {
			return fmt.Errorf("execute insert: %w", err)
		}

		if id, err := res.LastInsertId(); err == nil {
			e.ID = id
		}
		return nil
	}()

	if err = s.finish(db, err); err != nil {
		metrics.WriteFailures.WithLabelValues("write_one").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	metrics.EventsWritten.WithLabelValues(e.EventType, e.Severity).Inc()
	return nil
}

// WriteMany appends a batch of events in one transaction with a single
// prepared statement. All-or-nothing: if any event fails to validate,
// serialize, bind, or execute, the whole transaction is rolled back and no
// rows from the batch are visible.
func (s *Store) WriteMany(ctx context.Context, events []*core.Event) error {
	if len(events) == 0 {
		return nil
	}

	db, err := s.open(ctx)
	if err != nil {
		metrics.WriteFailures.WithLabelValues("write_many").Inc()
		return fmt.Errorf("%w: %v", ErrBatchWrite, err)
	}

	err = func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertEventSQL)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for i, e := range events {
			if err := e.Validate(); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("event %d: %w", i, err)
			}
			metadataJSON, correlationID, err := encodeOptional(e)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("event %d: %w", i, err)
			}
			ts := e.Timestamp
			if ts == 0 {
				ts = now
			}
			res, err := stmt.ExecContext(ctx,
				ts,
				e.ServiceName,
				e.NodeID,
				e.EventType,
				e.Severity,
				e.Message,
				correlationID,
				metadataJSON,
			)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("event %d: execute insert: %w", i, err)
			}
			e.Timestamp = ts
			if id, err := res.LastInsertId(); err == nil {
				e.ID = id
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	}()

	if err = s.finish(db, err); err != nil {
		metrics.WriteFailures.WithLabelValues("write_many").Inc()
		return fmt.Errorf("%w: %v", ErrBatchWrite, err)
	}

	metrics.BatchesCommitted.Inc()
	for _, e := range events {
		metrics.EventsWritten.WithLabelValues(e.EventType, e.Severity).Inc()
	}
	return nil
}

// MarkForwarded flags the given event IDs as handed off to the aggregator in
// a single UPDATE. Idempotent: already-forwarded IDs are a no-op, unknown IDs
// are silently ignored, and the flag never reverts to false. This is the only
// mutation an external aggregator may request.
func (s *Store) MarkForwarded(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	db, err := s.open(ctx)
	if err != nil {
		metrics.WriteFailures.WithLabelValues("mark_forwarded").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	var marked int64
	err = func() error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]interface{}, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		query := fmt.Sprintf("UPDATE events SET forwarded = 1 WHERE forwarded = 0 AND id IN (%s)", placeholders)
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("mark forwarded: %w", err)
		}
		marked, _ = res.RowsAffected()
		return nil
	}()

	if err = s.finish(db, err); err != nil {
		metrics.WriteFailures.WithLabelValues("mark_forwarded").Inc()
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	metrics.EventsForwarded.Add(float64(marked))
	return nil
}

// FetchUnforwarded returns up to limit events not yet handed off, oldest
// first (FIFO delivery order to the aggregator), with metadata decoded back
// into structured form. Read-only and repeatable; it never mutates the
// forwarded flag. A non-positive limit means no limit.
func (s *Store) FetchUnforwarded(ctx context.Context, limit int) ([]*core.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	var events []*core.Event
	err = func() error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, service_name, node_id, event_type, severity, message, correlation_id, metadata, forwarded
			FROM events
			WHERE forwarded = 0
			ORDER BY timestamp ASC, id ASC
			LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("query unforwarded: %w", err)
		}
		defer rows.Close()

		events = make([]*core.Event, 0)
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return rows.Err()
	}()

	if err = s.finish(db, err); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return events, nil
}

// DeleteForwardedOlderThan deletes every forwarded event with a timestamp
// strictly before cutoff (unix seconds) and returns the count deleted.
// Unforwarded events are never deleted regardless of age — that is the safety
// invariant protecting events not yet durably handed off.
func (s *Store) DeleteForwardedOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	db, err := s.open(ctx)
	if err != nil {
		metrics.WriteFailures.WithLabelValues("delete_forwarded").Inc()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	var deleted int64
	err = func() error {
		res, err := db.ExecContext(ctx,
			"DELETE FROM events WHERE forwarded = 1 AND timestamp < ?", cutoff)
		if err != nil {
			return fmt.Errorf("delete forwarded: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	}()

	if err = s.finish(db, err); err != nil {
		metrics.WriteFailures.WithLabelValues("delete_forwarded").Inc()
		return 0, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	metrics.RetentionDeleted.Add(float64(deleted))
	return deleted, nil
}

// Compact rebuilds the database file to reclaim space freed by deletions.
// The store remains fully functional afterwards; safe on an empty or
// already-compact file.
func (s *Store) Compact(ctx context.Context) error {
	db, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMaintenance, err)
	}

	err = func() error {
		// Fold the WAL back into the main file first so VACUUM reclaims it too.
		if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		return nil
	}()

	if err = s.finish(db, err); err != nil {
		return fmt.Errorf("%w: %v", ErrMaintenance, err)
	}

	metrics.Compactions.Inc()
	s.logger.Infow("Event store compacted", "path", s.path)
	return nil
}

// Stats summarizes the log for operators.
type Stats struct {
	Total       int64 `json:"total"`
	Unforwarded int64 `json:"unforwarded"`
	Forwarded   int64 `json:"forwarded"`
}

// Stats returns row counts by forwarding state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.open(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrRead, err)
	}

	var st Stats
	err = func() error {
		return db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(CASE WHEN forwarded = 0 THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN forwarded = 1 THEN 1 ELSE 0 END), 0)
			FROM events
		`).Scan(&st.Total, &st.Unforwarded, &st.Forwarded)
	}()

	if err = s.finish(db, err); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return st, nil
}

// encodeOptional serializes the nullable columns. Metadata is marshaled
// immediately before binding; a value JSON cannot represent aborts the write
// before it reaches the database.
func encodeOptional(e *core.Event) (metadata, correlationID interface{}, err error) {
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("serialize metadata: %w", err)
		}
		metadata = string(raw)
	}
	if e.CorrelationID != "" {
		correlationID = e.CorrelationID
	}
	return metadata, correlationID, nil
}

// scanEvent reads one row into an Event, decoding stored metadata. A
// malformed metadata document is a read error, not a silently dropped row.
func scanEvent(rows *sql.Rows) (*core.Event, error) {
	var (
		e             core.Event
		forwarded     int
		correlationID sql.NullString
		metadataJSON  sql.NullString
	)
	if err := rows.Scan(
		&e.ID,
		&e.Timestamp,
		&e.ServiceName,
		&e.NodeID,
		&e.EventType,
		&e.Severity,
		&e.Message,
		&correlationID,
		&metadataJSON,
		&forwarded,
	); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	e.Forwarded = forwarded != 0
	if correlationID.Valid {
		e.CorrelationID = correlationID.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for event %d: %w", e.ID, err)
		}
	}
	return &e, nil
}
