package segment

import (
	"slices"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
)

// AllClusters asks Index.Timestamps for occurrences across every cluster.
const AllClusters = -1

type clusterPair struct {
	pair    event.Pair
	cluster int
}

// Index answers occurrence and cluster-membership lookups over retained
// events. Outliers and events of invalid clusters are never indexed.
type Index struct {
	timestamps   map[event.Pair][]time.Time
	byCluster    map[clusterPair][]time.Time
	origins      map[int64][]int
	destinations map[int64][]int
}

// NewIndex indexes the retained events among events, which must be in time
// order.
func NewIndex(events []ClusteredEvent) *Index {
	idx := &Index{
		timestamps:   make(map[event.Pair][]time.Time),
		byCluster:    make(map[clusterPair][]time.Time),
		origins:      make(map[int64][]int),
		destinations: make(map[int64][]int),
	}
	for _, e := range events {
		if !e.Retained() {
			continue
		}
		p := e.Pair()
		idx.timestamps[p] = append(idx.timestamps[p], e.Timestamp)
		cp := clusterPair{pair: p, cluster: e.ClusterID}
		idx.byCluster[cp] = append(idx.byCluster[cp], e.Timestamp)
		idx.origins[e.Origin] = appendCluster(idx.origins[e.Origin], e.ClusterID)
		idx.destinations[e.Destination] = appendCluster(idx.destinations[e.Destination], e.ClusterID)
	}
	return idx
}

// Index builds an Index over the segmentation's retained events.
func (s *Segmentation) Index() *Index {
	return NewIndex(s.Events)
}

// appendCluster keeps ids distinct. Events arrive in time order and cluster
// ids grow with time, so checking the tail suffices.
func appendCluster(ids []int, id int) []int {
	if n := len(ids); n > 0 && ids[n-1] == id {
		return ids
	}
	return append(ids, id)
}

// Timestamps returns the occurrence times of pair within cluster, in
// ascending order. AllClusters (or any negative id) spans the whole run.
// The returned slice must not be modified.
func (x *Index) Timestamps(pair event.Pair, cluster int) []time.Time {
	if cluster < 0 {
		return x.timestamps[pair]
	}
	return x.byCluster[clusterPair{pair: pair, cluster: cluster}]
}

// OriginClusters returns the ascending cluster ids holding a record whose
// origin is id.
func (x *Index) OriginClusters(id int64) []int {
	return x.origins[id]
}

// DestinationClusters returns the ascending cluster ids holding a record
// whose destination is id.
func (x *Index) DestinationClusters(id int64) []int {
	return x.destinations[id]
}

// Pairs returns every indexed pair in ascending order.
func (x *Index) Pairs() []event.Pair {
	pairs := make([]event.Pair, 0, len(x.timestamps))
	for p := range x.timestamps {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, event.Pair.Compare)
	return pairs
}
