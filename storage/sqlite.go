package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Pragmas holds the tunable durability/performance settings applied to every
// connection. journal_mode is persisted in the file and set once during
// Initialize; the rest are per-connection and must be re-applied on each open.
type Pragmas struct {
	BusyTimeout       time.Duration // fail-fast window for lock contention
	CacheKB           int           // page cache size in KiB
	MmapBytes         int64         // memory-mapped I/O window
	WALAutoCheckpoint int           // pages between automatic WAL checkpoints
}

// DefaultPragmas returns the settings used when the config does not override
// them.
func DefaultPragmas() Pragmas {
	return Pragmas{
		BusyTimeout:       5 * time.Second,
		CacheKB:           8192,
		MmapBytes:         64 * 1024 * 1024,
		WALAutoCheckpoint: 1000,
	}
}

// Store is a handle on one local event log file. It holds no open
// connections: every operation opens its own connection and closes it before
// returning, because independent host processes share the file and a held
// connection would pin file locks across unrelated operations. Correctness
// under concurrency relies on SQLite's own lock arbitration, not on any
// in-process mutex.
type Store struct {
	path    string
	pragmas Pragmas
	logger  *zap.SugaredLogger
}

// NewStore creates a store handle with default pragmas. The file is not
// touched until Initialize or the first operation.
func NewStore(path string, logger *zap.SugaredLogger) *Store {
	return NewStoreWithPragmas(path, DefaultPragmas(), logger)
}

// NewStoreWithPragmas creates a store handle with explicit pragma settings.
func NewStoreWithPragmas(path string, pragmas Pragmas, logger *zap.SugaredLogger) *Store {
	return &Store{
		path:    path,
		pragmas: pragmas,
		logger:  logger,
	}
}

// Path returns the database file path this handle operates on.
func (s *Store) Path() string {
	return s.path
}

// Initialize prepares the database file for use: it creates the parent
// directory, opens the file (creating it if absent), switches it to WAL mode,
// creates the events table and indexes, and closes its handle. Idempotent —
// on an already-initialized file everything reduces to IF NOT EXISTS no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("%w: empty database path", ErrInitialization)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" && s.path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create directory %s: %v", ErrInitialization, dir, err)
		}
	}

	db, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	if err := s.enableWAL(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: create schema: %v", ErrInitialization, err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("%w: close after init: %v", ErrInitialization, err)
	}

	s.logger.Infow("Event store initialized", "path", s.path)
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	service_name TEXT NOT NULL,
	node_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	correlation_id TEXT,
	metadata TEXT,
	forwarded INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_forwarded ON events(forwarded);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_correlation_id ON events(correlation_id);
CREATE INDEX IF NOT EXISTS idx_events_service_type ON events(service_name, event_type);
`

// open opens a fresh connection and applies the per-connection pragmas.
// MaxOpenConns is pinned to 1: each operation is a single logical connection
// opened and closed around the work.
func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	perConn := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.pragmas.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA cache_size=-%d", s.pragmas.CacheKB),
		fmt.Sprintf("PRAGMA mmap_size=%d", s.pragmas.MmapBytes),
		fmt.Sprintf("PRAGMA wal_autocheckpoint=%d", s.pragmas.WALAutoCheckpoint),
	}
	for _, pragma := range perConn {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// enableWAL switches the file to write-ahead logging and verifies the mode
// actually took. WAL allows concurrent readers while one writer appends,
// which is what keeps cross-process lock contention low.
func (s *Store) enableWAL(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("query journal mode: %w", err)
	}
	// In-memory databases report "memory", not "wal".
	if s.path != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %q)", journalMode)
	}
	return nil
}

// finish closes db, preserving the operation error. A close failure after a
// failed operation is logged but never masks the original error.
func (s *Store) finish(db *sql.DB, opErr error) error {
	if cerr := db.Close(); cerr != nil {
		if opErr != nil {
			s.logger.Warnw("Connection close failed after error", "close_error", cerr, "path", s.path)
			return opErr
		}
		return cerr
	}
	return opErr
}
