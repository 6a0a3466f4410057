// Package event holds the input model: directed events and the immutable,
// time-sorted store every stage reads from.
package event

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
)

// Event is one directed transition observed at a point in time.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Origin      int64     `json:"origin"`
	Destination int64     `json:"destination"`
}

// Pair returns the origin => destination edge of the event.
func (e Event) Pair() Pair {
	return Pair{Antecedent: e.Origin, Consequent: e.Destination}
}

// Pair identifies a directed edge. Antecedent is the origin endpoint and
// Consequent the destination endpoint.
type Pair struct {
	Antecedent int64 `json:"antecedent"`
	Consequent int64 `json:"consequent"`
}

// String renders the pair as "a => c".
func (p Pair) String() string {
	return fmt.Sprintf("%d => %d", p.Antecedent, p.Consequent)
}

// Compare orders pairs by antecedent, then consequent.
func (p Pair) Compare(other Pair) int {
	if c := cmp.Compare(p.Antecedent, other.Antecedent); c != 0 {
		return c
	}
	return cmp.Compare(p.Consequent, other.Consequent)
}

// Store is an immutable, time-sorted view over events.
// Ties on timestamp keep input order.
//
// Store is safe for concurrent reads.
type Store struct {
	events []Event
}

// NewStore validates and sorts a copy of events.
// An event with a zero timestamp is rejected with an InputError naming its
// index in the input slice.
func NewStore(events []Event) (*Store, error) {
	for i, e := range events {
		if e.Timestamp.IsZero() {
			return nil, &mineerrors.InputError{
				Record: i,
				Field:  "timestamp",
				Err:    mineerrors.ErrMissingField,
			}
		}
	}

	sorted := slices.Clone(events)
	SortStable(sorted)
	return &Store{events: sorted}, nil
}

// SortStable orders events by timestamp, preserving input order on ties.
func SortStable(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// Len returns the number of events.
func (s *Store) Len() int {
	return len(s.events)
}

// At returns the i-th event in time order.
func (s *Store) At(i int) Event {
	return s.events[i]
}

// Events returns a copy of the events in time order.
func (s *Store) Events() []Event {
	return slices.Clone(s.events)
}

// Span returns the first and last timestamps. Both are zero for an empty store.
func (s *Store) Span() (first, last time.Time) {
	if len(s.events) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.events[0].Timestamp, s.events[len(s.events)-1].Timestamp
}
