package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/event"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists reports and datasets to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var (
	_ Store        = (*SQLiteStore)(nil)
	_ DatasetStore = (*SQLiteStore)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		data BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		saved_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		dataset TEXT NOT NULL,
		position INTEGER NOT NULL,
		ts_unix INTEGER NOT NULL,
		ts_nanos INTEGER NOT NULL,
		origin INTEGER NOT NULL,
		destination INTEGER NOT NULL,
		PRIMARY KEY (dataset, position)
	)`,
}

// NewSQLiteStore creates a new SQLite store.
// The path should be a file path (e.g., "./seqmine.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases stable across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(runID string, data []byte) error {
	if runID == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO reports (run_id, sequence, timestamp, data)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM reports), 0) + 1,
			?, ?
		)
		ON CONFLICT(run_id) DO UPDATE SET
			sequence = (SELECT MAX(sequence) FROM reports) + 1,
			timestamp = excluded.timestamp,
			data = excluded.data
	`, runID, time.Now().UTC().Format(time.RFC3339Nano), data)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(runID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`SELECT data FROM reports WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, sequence, timestamp, LENGTH(data)
		FROM reports
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var timestamp string
		if err := rows.Scan(&info.RunID, &info.Sequence, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan report info: %w", err)
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM reports WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// SaveEvents implements DatasetStore. The dataset is replaced atomically.
func (s *SQLiteStore) SaveEvents(dataset string, events []event.Event) error {
	if dataset == "" {
		return ErrEmptyKey
	}
	store, err := event.NewStore(events)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin dataset save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(`DELETE FROM events WHERE dataset = ?`, dataset); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO datasets (name, saved_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET saved_at = excluded.saved_at
	`, dataset, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("register dataset: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (dataset, position, ts_unix, ts_nanos, origin, destination)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	// Seconds and nanoseconds are stored apart: a single UnixNano column
	// only covers the years 1678 to 2262.
	for i := 0; i < store.Len(); i++ {
		e := store.At(i)
		if _, err := stmt.Exec(dataset, i, e.Timestamp.Unix(), e.Timestamp.Nanosecond(), e.Origin, e.Destination); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset save: %w", err)
	}
	return nil
}

// LoadEvents implements DatasetStore. Timestamps are returned in UTC.
func (s *SQLiteStore) LoadEvents(dataset string) (*event.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var name string
	err := s.db.QueryRow(`SELECT name FROM datasets WHERE name = ?`, dataset).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup dataset: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT ts_unix, ts_nanos, origin, destination
		FROM events
		WHERE dataset = ?
		ORDER BY position
	`, dataset)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var sec, nsec int64
		var e event.Event
		if err := rows.Scan(&sec, &nsec, &e.Origin, &e.Destination); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.Unix(sec, nsec).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return event.NewStore(events)
}

// Datasets implements DatasetStore.
func (s *SQLiteStore) Datasets() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dataset name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return names, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
