package config

import (
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/completion"
	"github.com/randalmurphal/seqmine/pkg/seqmine/grouping"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
)

// Scope selects the event subsets rules are mined from.
type Scope string

const (
	// ScopeCluster mines each valid cluster on its own.
	ScopeCluster Scope = "cluster"

	// ScopeGlobal mines all retained events in one pass.
	ScopeGlobal Scope = "global"
)

// Params is the full parameter set of a run.
type Params struct {
	GapThreshold   time.Duration `koanf:"gap_threshold" yaml:"gap_threshold" json:"gap_threshold" validate:"gte=0s"`
	MinClusterSize int           `koanf:"min_cluster_size" yaml:"min_cluster_size" json:"min_cluster_size" validate:"gte=1"`

	MinSupport       float64 `koanf:"min_support" yaml:"min_support" json:"min_support" validate:"gte=0,lte=1"`
	MinConfidence    float64 `koanf:"min_confidence" yaml:"min_confidence" json:"min_confidence" validate:"gt=0,lte=1"`
	MaxDistinctItems int     `koanf:"max_distinct_items" yaml:"max_distinct_items" json:"max_distinct_items" validate:"gte=1"`
	AutoSupport      bool    `koanf:"auto_support" yaml:"auto_support" json:"auto_support"`
	SupportSlack     float64 `koanf:"support_slack" yaml:"support_slack" json:"support_slack" validate:"gt=0,lte=1"`
	Scope            Scope   `koanf:"scope" yaml:"scope" json:"scope" validate:"oneof=cluster global"`

	TimeWindow    time.Duration     `koanf:"time_window" yaml:"time_window" json:"time_window" validate:"gte=0s"`
	TieBreak      grouping.TieBreak `koanf:"tie_break" yaml:"tie_break" json:"tie_break" validate:"oneof=earliest strict"`
	MinGroupRules int               `koanf:"min_group_rules" yaml:"min_group_rules" json:"min_group_rules" validate:"gte=1"`

	MinRepetitions int                  `koanf:"min_repetitions" yaml:"min_repetitions" json:"min_repetitions" validate:"gte=1"`
	SplitMode      completion.SplitMode `koanf:"split_mode" yaml:"split_mode" json:"split_mode" validate:"oneof=repeat gap"`
}

// Default returns a parameter set suited to minute-resolution event logs.
func Default() Params {
	return Params{
		GapThreshold:     5 * time.Minute,
		MinClusterSize:   2,
		MinSupport:       0.01,
		MinConfidence:    0.5,
		MaxDistinctItems: 30000,
		SupportSlack:     0.9,
		Scope:            ScopeCluster,
		TimeWindow:       10 * time.Minute,
		TieBreak:         grouping.TieBreakEarliest,
		MinGroupRules:    2,
		MinRepetitions:   2,
		SplitMode:        completion.SplitOnGap,
	}
}

// Mining returns the mining parameters.
func (p Params) Mining() mining.Params {
	mp := mining.Params{
		MinSupport:       p.MinSupport,
		MinConfidence:    p.MinConfidence,
		MaxDistinctItems: p.MaxDistinctItems,
	}
	if p.AutoSupport {
		mp.Auto = &mining.AutoSupport{MinRepetitions: p.MinRepetitions, Slack: p.SupportSlack}
	}
	return mp
}

// Grouping returns the grouping parameters.
func (p Params) Grouping() grouping.Params {
	return grouping.Params{TimeWindow: p.TimeWindow, TieBreak: p.TieBreak}
}

// Completion returns the completion parameters.
func (p Params) Completion() completion.Params {
	return completion.Params{
		TimeWindow:     p.TimeWindow,
		MinRepetitions: p.MinRepetitions,
		Mode:           p.SplitMode,
	}
}
