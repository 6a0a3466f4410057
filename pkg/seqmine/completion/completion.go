// Package completion counts complete repetitions of a pattern group.
//
// A Detector walks the group's occurrences in time order and keeps one
// open window. A window is complete once it holds at least one occurrence
// of every rule in the group; extra occurrences are tolerated. How an open
// window is closed depends on the SplitMode.
package completion

import (
	"errors"
	"fmt"
	"slices"
	"time"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/randalmurphal/seqmine/pkg/seqmine/grouping"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
)

// ErrOutOfOrder is returned by Detector.Push for an occurrence earlier than
// the previous one.
var ErrOutOfOrder = errors.New("occurrence out of time order")

// SplitMode selects how an open window is closed.
type SplitMode string

const (
	// SplitOnRepeat closes the window when an edge it has already completed
	// occurs again, or on a gap longer than the time window. Interleaved
	// repetitions inside one window count separately.
	SplitOnRepeat SplitMode = "repeat"

	// SplitOnGap closes the window only on a gap longer than the time
	// window, so each repetition is a maximal time-contiguous run. This is
	// the default.
	SplitOnGap SplitMode = "gap"
)

// Valid reports whether m is a known mode.
func (m SplitMode) Valid() bool {
	return m == SplitOnRepeat || m == SplitOnGap
}

// Params controls detection.
type Params struct {
	TimeWindow     time.Duration
	MinRepetitions int
	Mode           SplitMode
}

// Validate rejects out-of-range parameters.
func (p Params) Validate() error {
	var errs []error
	if p.TimeWindow < 0 {
		errs = append(errs, mineerrors.Invalid("time_window", p.TimeWindow, "must not be negative"))
	}
	if p.MinRepetitions < 1 {
		errs = append(errs, mineerrors.Invalid("min_repetitions", p.MinRepetitions, "must be at least 1"))
	}
	if !p.Mode.Valid() {
		errs = append(errs, mineerrors.Invalid("split_mode", string(p.Mode), "must be repeat or gap"))
	}
	return errors.Join(errs...)
}

// Occurrence is one firing of a rule.
type Occurrence struct {
	Rule      mining.Rule `json:"rule"`
	Timestamp time.Time   `json:"timestamp"`
}

// Pair returns the edge that fired.
func (o Occurrence) Pair() event.Pair {
	return o.Rule.Pair()
}

// Repetition is one complete window, occurrences in time order.
type Repetition struct {
	Occurrences []Occurrence `json:"occurrences"`
}

// Start returns the first occurrence time.
func (r Repetition) Start() time.Time {
	return r.Occurrences[0].Timestamp
}

// End returns the last occurrence time.
func (r Repetition) End() time.Time {
	return r.Occurrences[len(r.Occurrences)-1].Timestamp
}

// Pairs returns the distinct edges in the repetition, in first-seen order.
func (r Repetition) Pairs() []event.Pair {
	seen := make(map[event.Pair]struct{}, len(r.Occurrences))
	var out []event.Pair
	for _, o := range r.Occurrences {
		p := o.Pair()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Detector is the streaming state machine behind Count.
// It is not safe for concurrent use.
type Detector struct {
	required map[event.Pair]struct{}
	window   time.Duration
	mode     SplitMode

	buffer    []Occurrence
	present   map[event.Pair]struct{}
	completed map[event.Pair]struct{}
	last      time.Time
	started   bool

	repetitions []Repetition
}

// NewDetector creates a detector requiring every edge of group.
func NewDetector(group grouping.PatternGroup, p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(group.Rules) == 0 {
		return nil, fmt.Errorf("completion: group in cluster %d has no rules", group.ClusterID)
	}

	required := make(map[event.Pair]struct{}, len(group.Rules))
	for _, r := range group.Rules {
		required[r.Pair()] = struct{}{}
	}
	return &Detector{
		required:  required,
		window:    p.TimeWindow,
		mode:      p.Mode,
		present:   make(map[event.Pair]struct{}),
		completed: make(map[event.Pair]struct{}),
	}, nil
}

// Push feeds the next occurrence.
func (d *Detector) Push(o Occurrence) error {
	if d.started && o.Timestamp.Before(d.last) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, o.Timestamp.Format(time.RFC3339Nano), d.last.Format(time.RFC3339Nano))
	}
	d.started = true
	d.last = o.Timestamp

	if len(d.buffer) == 0 {
		d.open(o)
		return nil
	}

	if d.mode == SplitOnRepeat {
		if _, repeated := d.completed[o.Pair()]; repeated {
			d.close()
			d.open(o)
			return nil
		}
	}

	if o.Timestamp.Sub(d.buffer[len(d.buffer)-1].Timestamp) > d.window {
		d.close()
		d.open(o)
		return nil
	}

	d.append(o)
	return nil
}

// Finish closes the open window and returns every complete repetition.
// The detector must not be used afterwards.
func (d *Detector) Finish() []Repetition {
	d.close()
	if d.repetitions == nil {
		return []Repetition{}
	}
	return d.repetitions
}

func (d *Detector) open(o Occurrence) {
	d.buffer = nil
	clear(d.present)
	clear(d.completed)
	d.append(o)
}

func (d *Detector) append(o Occurrence) {
	d.buffer = append(d.buffer, o)
	d.present[o.Pair()] = struct{}{}
	if d.complete() {
		for p := range d.present {
			d.completed[p] = struct{}{}
		}
	}
}

// close keeps the buffer as a repetition when complete and discards it
// otherwise.
func (d *Detector) close() {
	if len(d.buffer) > 0 && d.complete() {
		d.repetitions = append(d.repetitions, Repetition{Occurrences: d.buffer})
	}
	d.buffer = nil
	clear(d.present)
	clear(d.completed)
}

func (d *Detector) complete() bool {
	for p := range d.required {
		if _, ok := d.present[p]; !ok {
			return false
		}
	}
	return true
}

// Result is the outcome of evaluating one group.
type Result struct {
	Group       grouping.PatternGroup `json:"group"`
	Count       int                   `json:"count"`
	Repetitions []Repetition          `json:"repetitions"`

	// Qualified is Count >= MinRepetitions. Unqualified groups are dropped
	// from reports.
	Qualified bool `json:"qualified"`
}

// Count evaluates group over occurrences, which are sorted stably by time
// first.
func Count(group grouping.PatternGroup, occurrences []Occurrence, p Params) (*Result, error) {
	d, err := NewDetector(group, p)
	if err != nil {
		return nil, err
	}

	sorted := slices.Clone(occurrences)
	slices.SortStableFunc(sorted, func(a, b Occurrence) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	for _, o := range sorted {
		if err := d.Push(o); err != nil {
			return nil, err
		}
	}

	reps := d.Finish()
	return &Result{
		Group:       group,
		Count:       len(reps),
		Repetitions: reps,
		Qualified:   len(reps) >= p.MinRepetitions,
	}, nil
}

// Timestamps resolves occurrence times of an edge inside a cluster.
// segment.Index implements it.
type Timestamps interface {
	Timestamps(pair event.Pair, cluster int) []time.Time
}

// Occurrences expands every rule of group into its occurrences inside the
// group's cluster, sorted by time with ties in rule order.
func Occurrences(group grouping.PatternGroup, lookup Timestamps) []Occurrence {
	var out []Occurrence
	for _, r := range group.Rules {
		for _, ts := range lookup.Timestamps(r.Pair(), group.ClusterID) {
			out = append(out, Occurrence{Rule: r, Timestamp: ts})
		}
	}
	slices.SortStableFunc(out, func(a, b Occurrence) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
