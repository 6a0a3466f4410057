package runstore

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
)

// MemoryStore is an in-memory store for tests and one-shot runs.
// Data is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	reports  map[string]storedReport
	datasets map[string][]event.Event
	closed   bool
}

// storedReport holds report data with metadata for List().
type storedReport struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

var (
	_ Store        = (*MemoryStore)(nil)
	_ DatasetStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:  make(map[string]storedReport),
		datasets: make(map[string][]event.Event),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(runID string, data []byte) error {
	if runID == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	seq := 1
	for _, r := range m.reports {
		if r.sequence >= seq {
			seq = r.sequence + 1
		}
	}

	m.reports[runID] = storedReport{
		data:      slices.Clone(data),
		sequence:  seq,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	r, ok := m.reports[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(r.data), nil
}

// List implements Store.
func (m *MemoryStore) List() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.reports))
	for runID, r := range m.reports {
		infos = append(infos, Info{
			RunID:     runID,
			Sequence:  r.sequence,
			Timestamp: r.timestamp,
			Size:      int64(len(r.data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.reports, runID)
	return nil
}

// SaveEvents implements DatasetStore.
func (m *MemoryStore) SaveEvents(dataset string, events []event.Event) error {
	if dataset == "" {
		return ErrEmptyKey
	}
	store, err := event.NewStore(events)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.datasets[dataset] = store.Events()
	return nil
}

// LoadEvents implements DatasetStore.
func (m *MemoryStore) LoadEvents(dataset string) (*event.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	events, ok := m.datasets[dataset]
	if !ok {
		return nil, ErrNotFound
	}
	return event.NewStore(events)
}

// Datasets implements DatasetStore.
func (m *MemoryStore) Datasets() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	names := make([]string, 0, len(m.datasets))
	for name := range m.datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.reports = nil
	m.datasets = nil
	return nil
}

// Len returns the number of stored reports.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}
