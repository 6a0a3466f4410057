// Package grouping merges mined rules into candidate multi-step patterns.
//
// Rules are first reduced to one per distinct edge and assigned to a
// single temporal cluster. Within a cluster, a group grows from a seed rule
// by absorbing every rule with an occurrence within the time window of any
// occurrence already in the group, until a full pass absorbs nothing.
// Groups never span clusters and never hold the same edge twice.
package grouping

import (
	"errors"
	"slices"
	"time"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
)

// TieBreak decides the cluster of a rule whose edge matches several.
type TieBreak string

const (
	// TieBreakEarliest picks the lowest matching cluster id.
	TieBreakEarliest TieBreak = "earliest"

	// TieBreakStrict leaves ambiguous rules ungrouped.
	TieBreakStrict TieBreak = "strict"
)

// Valid reports whether t is a known policy.
func (t TieBreak) Valid() bool {
	return t == TieBreakEarliest || t == TieBreakStrict
}

// Lookup resolves occurrences and cluster membership over retained events.
// segment.Index implements it.
type Lookup interface {
	// Timestamps returns the ascending occurrence times of pair inside
	// cluster.
	Timestamps(pair event.Pair, cluster int) []time.Time

	// OriginClusters returns the ascending clusters holding a record with
	// this origin.
	OriginClusters(origin int64) []int

	// DestinationClusters returns the ascending clusters holding a record
	// with this destination.
	DestinationClusters(destination int64) []int
}

// Params controls grouping.
type Params struct {
	TimeWindow time.Duration
	TieBreak   TieBreak
}

// Validate rejects out-of-range parameters.
func (p Params) Validate() error {
	var errs []error
	if p.TimeWindow < 0 {
		errs = append(errs, mineerrors.Invalid("time_window", p.TimeWindow, "must not be negative"))
	}
	if !p.TieBreak.Valid() {
		errs = append(errs, mineerrors.Invalid("tie_break", string(p.TieBreak), "must be earliest or strict"))
	}
	return errors.Join(errs...)
}

// PatternGroup is a set of distinct rules that co-cluster and co-occur.
type PatternGroup struct {
	ClusterID int           `json:"cluster_id"`
	Rules     []mining.Rule `json:"rules"`
}

// Pairs returns the edges the group requires, in member order.
func (g PatternGroup) Pairs() []event.Pair {
	pairs := make([]event.Pair, len(g.Rules))
	for i, r := range g.Rules {
		pairs[i] = r.Pair()
	}
	return pairs
}

// Result holds the groups in ascending cluster order, then seed order, and
// the rules that could not be assigned to exactly one cluster.
type Result struct {
	Groups    []PatternGroup `json:"groups"`
	Ungrouped []mining.Rule  `json:"ungrouped"`
}

// Build groups rules. Rule order is significant: it decides which rule of
// a duplicated edge is seen first and which rule seeds each group.
func Build(rules []mining.Rule, lookup Lookup, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Groups: []PatternGroup{}, Ungrouped: []mining.Rule{}}
	assigned, ungrouped := assign(rules, lookup, p.TieBreak)
	res.Ungrouped = append(res.Ungrouped, ungrouped...)

	byCluster := make(map[int][]mining.Rule)
	var clusters []int
	for _, r := range assigned {
		if _, ok := byCluster[r.ClusterID]; !ok {
			clusters = append(clusters, r.ClusterID)
		}
		byCluster[r.ClusterID] = append(byCluster[r.ClusterID], r)
	}
	slices.Sort(clusters)

	for _, id := range clusters {
		res.Groups = append(res.Groups, groupCluster(id, byCluster[id], lookup, p.TimeWindow)...)
	}
	return res, nil
}

// assign reduces rules to one per edge, in first-seen order, and stamps each
// with its resolved cluster.
func assign(rules []mining.Rule, lookup Lookup, tieBreak TieBreak) (assigned, ungrouped []mining.Rule) {
	instances := make(map[event.Pair][]mining.Rule)
	var order []event.Pair
	for _, r := range rules {
		pair := r.Pair()
		if _, ok := instances[pair]; !ok {
			order = append(order, pair)
		}
		instances[pair] = append(instances[pair], r)
	}

	for _, pair := range order {
		rs := instances[pair]
		candidates := candidateClusters(pair, rs, lookup)

		var cluster int
		switch {
		case len(candidates) == 0:
			ungrouped = append(ungrouped, rs[0])
			continue
		case len(candidates) == 1 || tieBreak == TieBreakEarliest:
			cluster = candidates[0]
		default:
			ungrouped = append(ungrouped, rs[0])
			continue
		}

		chosen := rs[0]
		for _, r := range rs {
			if r.ClusterID == cluster {
				chosen = r
				break
			}
		}
		chosen.ClusterID = cluster
		assigned = append(assigned, chosen)
	}
	return assigned, ungrouped
}

// candidateClusters returns the ascending clusters that hold both a record
// with the rule's origin and a record with its destination. When the rule
// instances were mined per cluster, only those clusters are eligible.
func candidateClusters(pair event.Pair, instances []mining.Rule, lookup Lookup) []int {
	shared := intersect(lookup.OriginClusters(pair.Antecedent), lookup.DestinationClusters(pair.Consequent))

	var mined []int
	for _, r := range instances {
		if r.ClusterID != mining.Unclustered {
			mined = append(mined, r.ClusterID)
		}
	}
	if len(mined) == 0 {
		return shared
	}
	slices.Sort(mined)
	return intersect(shared, slices.Compact(mined))
}

// intersect merges two ascending id lists.
func intersect(a, b []int) []int {
	var out []int
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// groupCluster only sees occurrences inside clusterID, so closure never
// joins rules through another cluster's events.
func groupCluster(clusterID int, rules []mining.Rule, lookup Lookup, window time.Duration) []PatternGroup {
	used := make([]bool, len(rules))
	var groups []PatternGroup

	for seed := range rules {
		if used[seed] {
			continue
		}
		used[seed] = true
		group := PatternGroup{ClusterID: clusterID, Rules: []mining.Rule{rules[seed]}}
		times := slices.Clone(lookup.Timestamps(rules[seed].Pair(), clusterID))

		for absorbed := true; absorbed; {
			absorbed = false
			for i, r := range rules {
				if used[i] {
					continue
				}
				ts := lookup.Timestamps(r.Pair(), clusterID)
				if !withinWindow(times, ts, window) {
					continue
				}
				used[i] = true
				absorbed = true
				group.Rules = append(group.Rules, r)
				times = merge(times, ts)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// withinWindow reports whether some element of a and some element of b,
// both ascending, are at most window apart.
func withinWindow(a, b []time.Time, window time.Duration) bool {
	for i, j := 0, 0; i < len(a) && j < len(b); {
		d := a[i].Sub(b[j])
		if d.Abs() <= window {
			return true
		}
		if d < 0 {
			i++
		} else {
			j++
		}
	}
	return false
}

// merge returns the ascending union of two ascending slices.
func merge(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j].Before(a[i]) {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
