// Package segment splits a time-ordered event stream into temporal clusters.
//
// A cluster is a maximal run of events whose consecutive gaps stay within
// the gap threshold. An event whose gaps to both neighbours exceed the
// threshold is an outlier: it is assigned to NoiseCluster and belongs to no
// real cluster. Real clusters are numbered from 1 in time order.
//
// Only events of valid clusters (size >= min cluster size) are retained for
// rule mining, grouping and completion.
package segment

import (
	"slices"
	"time"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
)

// NoiseCluster is the cluster id given to outliers.
const NoiseCluster = 0

// ClusteredEvent is an event annotated with its cluster assignment.
type ClusteredEvent struct {
	event.Event
	ClusterID    int  `json:"cluster_id"`
	IsOutlier    bool `json:"is_outlier"`
	ValidCluster bool `json:"valid_cluster"`
}

// Retained reports whether the event takes part in downstream computation.
func (e ClusteredEvent) Retained() bool {
	return !e.IsOutlier && e.ValidCluster
}

// Segmentation is the result of Segment.
type Segmentation struct {
	// Events in time order, one per input event.
	Events []ClusteredEvent

	// Sizes maps cluster id to its member count. Outliers are not counted.
	Sizes map[int]int

	// Outliers is the number of events assigned to NoiseCluster.
	Outliers int
}

// Segment assigns every event a cluster id and an outlier flag.
//
// Events are sorted stably by timestamp first. The first and last events
// have a single neighbour; the missing gap never exceeds the threshold, so
// neither can be an outlier.
func Segment(events []event.Event, gapThreshold time.Duration, minClusterSize int) (*Segmentation, error) {
	if gapThreshold < 0 {
		return nil, mineerrors.Invalid("gap_threshold", gapThreshold, "must not be negative")
	}
	if minClusterSize < 1 {
		return nil, mineerrors.Invalid("min_cluster_size", minClusterSize, "must be at least 1")
	}
	for i, e := range events {
		if e.Timestamp.IsZero() {
			return nil, &mineerrors.InputError{Record: i, Field: "timestamp", Err: mineerrors.ErrMissingField}
		}
	}

	sorted := slices.Clone(events)
	event.SortStable(sorted)

	seg := &Segmentation{
		Events: make([]ClusteredEvent, len(sorted)),
		Sizes:  make(map[int]int),
	}

	current := NoiseCluster
	for i, e := range sorted {
		prevGap, nextGap := gaps(sorted, i)
		ce := ClusteredEvent{Event: e}

		if prevGap > gapThreshold && nextGap > gapThreshold {
			ce.IsOutlier = true
			ce.ClusterID = NoiseCluster
			seg.Outliers++
		} else {
			// A new cluster starts after any gap above the threshold. This
			// matches counting the forward gap of the last non-outlier:
			// outliers in between never advance the counter, and the event
			// after an outlier always follows a gap above the threshold.
			if current == NoiseCluster || prevGap > gapThreshold {
				current++
			}
			ce.ClusterID = current
			seg.Sizes[current]++
		}
		seg.Events[i] = ce
	}

	for i := range seg.Events {
		ce := &seg.Events[i]
		ce.ValidCluster = !ce.IsOutlier && seg.Sizes[ce.ClusterID] >= minClusterSize
	}

	return seg, nil
}

// gaps returns the distance to the previous and next event. A missing
// neighbour reports a zero gap.
func gaps(events []event.Event, i int) (prev, next time.Duration) {
	if i > 0 {
		prev = events[i].Timestamp.Sub(events[i-1].Timestamp)
	}
	if i < len(events)-1 {
		next = events[i+1].Timestamp.Sub(events[i].Timestamp)
	}
	return prev, next
}

// Retained returns the events of valid clusters in time order.
func (s *Segmentation) Retained() []ClusteredEvent {
	out := make([]ClusteredEvent, 0, len(s.Events))
	for _, e := range s.Events {
		if e.Retained() {
			out = append(out, e)
		}
	}
	return out
}

// ValidClusters returns the ids of valid clusters in ascending order.
func (s *Segmentation) ValidClusters() []int {
	var ids []int
	for _, e := range s.Events {
		if !e.Retained() {
			continue
		}
		if n := len(ids); n == 0 || ids[n-1] != e.ClusterID {
			ids = append(ids, e.ClusterID)
		}
	}
	return ids
}

// ByCluster returns the retained events keyed by cluster id, each slice in
// time order.
func (s *Segmentation) ByCluster() map[int][]ClusteredEvent {
	out := make(map[int][]ClusteredEvent)
	for _, e := range s.Events {
		if e.Retained() {
			out[e.ClusterID] = append(out[e.ClusterID], e)
		}
	}
	return out
}

// Clusters returns the number of real clusters, valid or not.
func (s *Segmentation) Clusters() int {
	return len(s.Sizes)
}
