// Package mining derives origin => destination association rules from
// retained events under a hard cap on the number of frequent items.
//
// Every retained event contributes two items: its origin in the antecedent
// namespace and its destination in the consequent namespace. The two
// namespaces never collide, even when ids are equal.
//
// When more items are frequent than MaxDistinctItems allows, only the
// top-K by count are kept (ties by kind, then id). Pairs that need a
// dropped item are never formed. This is a deliberate approximation that
// bounds memory on unbounded id spaces.
package mining

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/randalmurphal/seqmine/pkg/seqmine/segment"
)

// Unclustered marks rules mined over all retained events at once.
const Unclustered = -1

// epsilon absorbs float error in threshold comparisons such as
// 0.1 * 30 = 3.0000000000000004.
const epsilon = 1e-9

// Kind is the item namespace.
type Kind uint8

const (
	Antecedent Kind = iota
	Consequent
)

func (k Kind) String() string {
	switch k {
	case Antecedent:
		return "antecedent"
	case Consequent:
		return "consequent"
	default:
		return "unknown"
	}
}

// Item is an id in one namespace.
type Item struct {
	Kind Kind
	ID   int64
}

// Compare orders items by kind, then id.
func (i Item) Compare(other Item) int {
	if c := cmp.Compare(i.Kind, other.Kind); c != 0 {
		return c
	}
	return cmp.Compare(i.ID, other.ID)
}

func (i Item) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

// Rule is a scored origin => destination association.
type Rule struct {
	Antecedent int64   `json:"antecedent"`
	Consequent int64   `json:"consequent"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
	ClusterID  int     `json:"cluster_id"`
}

// Pair returns the rule's edge.
func (r Rule) Pair() event.Pair {
	return event.Pair{Antecedent: r.Antecedent, Consequent: r.Consequent}
}

func (r Rule) String() string {
	return fmt.Sprintf("%d => %d (support %.4f, confidence %.4f)", r.Antecedent, r.Consequent, r.Support, r.Confidence)
}

// AutoSupport derives the support threshold from the repetition floor
// instead of taking it from Params.MinSupport.
type AutoSupport struct {
	MinRepetitions int
	Slack          float64
}

// Params bounds a mining run.
type Params struct {
	MinSupport       float64
	MinConfidence    float64
	MaxDistinctItems int

	// Auto, when set, replaces MinSupport per mined subset.
	Auto *AutoSupport
}

// Validate rejects out-of-range parameters.
func (p Params) Validate() error {
	var errs []error
	if p.Auto == nil {
		if p.MinSupport <= 0 || p.MinSupport > 1 {
			errs = append(errs, mineerrors.Invalid("min_support", p.MinSupport, "must be in (0,1]"))
		}
	} else {
		if p.Auto.MinRepetitions < 1 {
			errs = append(errs, mineerrors.Invalid("min_repetitions", p.Auto.MinRepetitions, "must be at least 1"))
		}
		if p.Auto.Slack <= 0 || p.Auto.Slack > 1 {
			errs = append(errs, mineerrors.Invalid("support_slack", p.Auto.Slack, "must be in (0,1]"))
		}
	}
	if p.MinConfidence <= 0 || p.MinConfidence > 1 {
		errs = append(errs, mineerrors.Invalid("min_confidence", p.MinConfidence, "must be in (0,1]"))
	}
	if p.MaxDistinctItems < 1 {
		errs = append(errs, mineerrors.Invalid("max_distinct_items", p.MaxDistinctItems, "must be at least 1"))
	}
	return errors.Join(errs...)
}

// SupportFor returns the support needed for an edge to occur minRepetitions
// times among n events, scaled by slack and capped at 1.
func SupportFor(minRepetitions, n int, slack float64) float64 {
	if n <= 0 {
		return 1
	}
	return min(1, slack*float64(minRepetitions)/float64(n))
}

// Result is the outcome of mining one subset of events.
type Result struct {
	ClusterID     int     `json:"cluster_id"`
	Rules         []Rule  `json:"rules"`
	TotalEvents   int     `json:"total_events"`
	MinSupport    float64 `json:"min_support"`
	FrequentItems int     `json:"frequent_items"`
	Truncated     bool    `json:"truncated"`
}

// Mine computes rules over the retained events in events. Outliers and
// events of invalid clusters are skipped. Rules are ordered by descending
// confidence; equal confidences keep discovery order. An empty input or an
// input with no frequent items yields no rules and no error.
func Mine(events []segment.ClusteredEvent, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return mine(events, p, Unclustered), nil
}

// MineClusters mines every valid cluster independently. Results are in
// ascending cluster order and rules carry their cluster id.
func MineClusters(seg *segment.Segmentation, p Params) ([]*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	byCluster := seg.ByCluster()
	results := make([]*Result, 0, len(byCluster))
	for _, id := range seg.ValidClusters() {
		results = append(results, mine(byCluster[id], p, id))
	}
	return results, nil
}

func mine(events []segment.ClusteredEvent, p Params, clusterID int) *Result {
	retained := make([]segment.ClusteredEvent, 0, len(events))
	for _, e := range events {
		if e.Retained() {
			retained = append(retained, e)
		}
	}

	n := len(retained)
	minSupport := p.MinSupport
	if p.Auto != nil {
		minSupport = SupportFor(p.Auto.MinRepetitions, n, p.Auto.Slack)
	}
	res := &Result{ClusterID: clusterID, TotalEvents: n, MinSupport: minSupport, Rules: []Rule{}}
	if n == 0 {
		return res
	}

	counts := countItems(retained)
	frequent, truncated := selectFrequent(counts, minSupport*float64(n), p.MaxDistinctItems)
	res.FrequentItems = len(frequent)
	res.Truncated = truncated
	if len(frequent) == 0 {
		return res
	}

	pairCounts := make(map[event.Pair]int)
	var discovered []event.Pair
	for _, e := range retained {
		_, okA := frequent[Item{Kind: Antecedent, ID: e.Origin}]
		_, okC := frequent[Item{Kind: Consequent, ID: e.Destination}]
		if !okA || !okC {
			continue
		}
		pair := e.Pair()
		if pairCounts[pair] == 0 {
			discovered = append(discovered, pair)
		}
		pairCounts[pair]++
	}

	for _, pair := range discovered {
		count := pairCounts[pair]
		support := float64(count) / float64(n)
		if support+epsilon < minSupport {
			continue
		}
		confidence := float64(count) / float64(counts[Item{Kind: Antecedent, ID: pair.Antecedent}])
		if confidence+epsilon < p.MinConfidence {
			continue
		}
		res.Rules = append(res.Rules, Rule{
			Antecedent: pair.Antecedent,
			Consequent: pair.Consequent,
			Support:    support,
			Confidence: confidence,
			Count:      count,
			ClusterID:  clusterID,
		})
	}

	slices.SortStableFunc(res.Rules, func(a, b Rule) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return res
}

func countItems(events []segment.ClusteredEvent) map[Item]int {
	counts := make(map[Item]int)
	for _, e := range events {
		counts[Item{Kind: Antecedent, ID: e.Origin}]++
		counts[Item{Kind: Consequent, ID: e.Destination}]++
	}
	return counts
}

// selectFrequent keeps items with count >= threshold, then the top limit of
// those by count.
func selectFrequent(counts map[Item]int, threshold float64, limit int) (map[Item]int, bool) {
	type entry struct {
		item  Item
		count int
	}
	var candidates []entry
	for item, c := range counts {
		if float64(c)+epsilon >= threshold {
			candidates = append(candidates, entry{item, c})
		}
	}

	truncated := len(candidates) > limit
	if truncated {
		slices.SortFunc(candidates, func(a, b entry) int {
			if c := cmp.Compare(b.count, a.count); c != 0 {
				return c
			}
			return a.item.Compare(b.item)
		})
		candidates = candidates[:limit]
	}

	frequent := make(map[Item]int, len(candidates))
	for _, e := range candidates {
		frequent[e.item] = e.count
	}
	return frequent, truncated
}
