// Package runstore persists mining reports and event datasets.
//
// Reports are opaque JSON records keyed by run ID. Datasets are named event
// tables that can be reloaded into an event.Store for later runs.
package runstore

import (
	"errors"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
)

// Store persists mining reports.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the report for a run.
	// Overwrites if a report for runID already exists.
	Save(runID string, data []byte) error

	// Load retrieves a report.
	// Returns ErrNotFound if the run has no report.
	Load(runID string) ([]byte, error)

	// List returns all stored reports, ordered by sequence.
	// Returns empty slice (not error) if nothing is stored.
	List() ([]Info, error)

	// Delete removes a report.
	// Returns nil if the report doesn't exist.
	Delete(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// DatasetStore persists named event datasets.
type DatasetStore interface {
	// SaveEvents replaces the dataset with the given events.
	SaveEvents(dataset string, events []event.Event) error

	// LoadEvents returns the dataset as a sorted event store.
	// Returns ErrNotFound if the dataset was never saved.
	LoadEvents(dataset string) (*event.Store, error)

	// Datasets returns the stored dataset names in ascending order.
	Datasets() ([]string, error)
}

// Info provides report metadata without loading the report.
type Info struct {
	RunID     string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a report or dataset doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("run store closed")

	// ErrEmptyKey indicates an empty run ID or dataset name.
	ErrEmptyKey = errors.New("empty key")
)
