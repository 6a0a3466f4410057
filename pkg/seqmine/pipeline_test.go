package seqmine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/completion"
	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairsOf(rules []mining.Rule) []event.Pair {
	out := make([]event.Pair, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Pair())
	}
	return out
}

func TestRun_ClusterScope(t *testing.T) {
	report, err := Run(testCtx(), newStore(t, stationEvents()), testParams(), WithRunID("run-1"))
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 9, report.TotalEvents)
	assert.Equal(t, 8, report.RetainedEvents)
	assert.Equal(t, 1, report.Outliers)
	assert.Empty(t, report.Ungrouped)

	require.Len(t, report.Clusters, 2)

	c1 := report.Clusters[0]
	assert.Equal(t, 1, c1.ClusterID)
	assert.Equal(t, 6, c1.Size)
	assert.Equal(t, []event.Pair{{Antecedent: 1, Consequent: 2}, {Antecedent: 3, Consequent: 4}}, pairsOf(c1.Rules))
	for _, r := range c1.Rules {
		assert.Equal(t, 1, r.ClusterID)
		assert.InDelta(t, 0.5, r.Support, 1e-9)
		assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	}
	require.Len(t, c1.Groups, 1)
	assert.Len(t, c1.Groups[0].Rules, 2)
	require.Len(t, c1.Sequences, 1)
	assert.Equal(t, 3, c1.Sequences[0].Count)
	assert.True(t, c1.Sequences[0].Qualified)

	c2 := report.Clusters[1]
	assert.Equal(t, 2, c2.ClusterID)
	assert.Equal(t, 2, c2.Size)
	assert.Len(t, c2.Rules, 2)
	require.Len(t, c2.Groups, 1)
	assert.Empty(t, c2.Sequences, "a single occurrence does not reach the repetition floor")

	require.Len(t, report.Mining, 2)
	assert.Equal(t, 1, report.Mining[0].ClusterID)
	assert.Equal(t, 6, report.Mining[0].TotalEvents)
	assert.Equal(t, 2, report.Mining[1].ClusterID)

	assert.Len(t, report.Sequences(), 1)
}

func TestRun_GlobalScope(t *testing.T) {
	params := testParams()
	params.Scope = config.ScopeGlobal

	report, err := Run(testCtx(), newStore(t, stationEvents()), params)
	require.NoError(t, err)

	require.Len(t, report.Mining, 1)
	assert.Equal(t, mining.Unclustered, report.Mining[0].ClusterID)
	assert.Equal(t, 8, report.Mining[0].TotalEvents)

	require.Len(t, report.Clusters, 2)
	c1 := report.Clusters[0]
	assert.Equal(t, []event.Pair{{Antecedent: 1, Consequent: 2}, {Antecedent: 3, Consequent: 4}}, pairsOf(c1.Rules))
	for _, r := range c1.Rules {
		assert.Equal(t, 1, r.ClusterID, "globally mined rules are resolved to their cluster")
		assert.InDelta(t, 3.0/8.0, r.Support, 1e-9)
	}
	require.Len(t, c1.Sequences, 1)
	assert.Equal(t, 3, c1.Sequences[0].Count)

	assert.Equal(t, []event.Pair{{Antecedent: 5, Consequent: 6}, {Antecedent: 6, Consequent: 7}}, pairsOf(report.Clusters[1].Rules))
}

func TestRun_SplitModes(t *testing.T) {
	for _, mode := range []completion.SplitMode{completion.SplitOnRepeat, completion.SplitOnGap} {
		t.Run(string(mode), func(t *testing.T) {
			params := testParams()
			params.SplitMode = mode

			report, err := Run(testCtx(), newStore(t, stationEvents()), params)
			require.NoError(t, err)

			seqs := report.Sequences()
			require.Len(t, seqs, 1)
			assert.Equal(t, 3, seqs[0].Count)
			for _, rep := range seqs[0].Repetitions {
				assert.ElementsMatch(t, seqs[0].Group.Pairs(), rep.Pairs())
			}
		})
	}
}

func TestRun_DefaultSplitKeepsInterleavedWindowWhole(t *testing.T) {
	// Both edges complete inside one 20s window and repeat before a gap.
	events := []event.Event{
		ev(0, 1, 2),
		ev(5*time.Second, 3, 4),
		ev(10*time.Second, 1, 2),
		ev(12*time.Second, 3, 4),
	}

	params := config.Default()
	params.TimeWindow = 20 * time.Second
	params.MinRepetitions = 2

	report, err := Run(testCtx(), newStore(t, events), params)
	require.NoError(t, err)
	require.Len(t, report.Clusters, 1)

	c := report.Clusters[0]
	require.Len(t, c.Groups, 1)
	assert.Len(t, c.Groups[0].Rules, 2)
	assert.Empty(t, c.Sequences, "one repetition does not reach the floor of two")

	params.MinRepetitions = 1
	report, err = Run(testCtx(), newStore(t, events), params)
	require.NoError(t, err)
	seqs := report.Sequences()
	require.Len(t, seqs, 1)
	assert.Equal(t, 1, seqs[0].Count)
	assert.Len(t, seqs[0].Repetitions[0].Occurrences, 4)

	params.MinRepetitions = 2
	params.SplitMode = completion.SplitOnRepeat
	report, err = Run(testCtx(), newStore(t, events), params)
	require.NoError(t, err)
	seqs = report.Sequences()
	require.Len(t, seqs, 1)
	assert.Equal(t, 2, seqs[0].Count)
}

func TestRun_RepetitionsStayInsideCluster(t *testing.T) {
	// The same two-step route runs twice in each of two clusters an hour
	// apart.
	var events []event.Event
	for _, base := range []time.Duration{0, time.Hour} {
		events = append(events,
			ev(base, 1, 2),
			ev(base+5*time.Second, 3, 4),
			ev(base+30*time.Second, 1, 2),
			ev(base+35*time.Second, 3, 4),
		)
	}

	report, err := Run(testCtx(), newStore(t, events), testParams())
	require.NoError(t, err)
	require.Len(t, report.Clusters, 2)

	c1 := report.Clusters[0]
	require.Len(t, c1.Sequences, 1)
	seq := c1.Sequences[0]
	assert.Equal(t, 1, seq.Group.ClusterID)
	assert.Equal(t, 2, seq.Count)
	for _, rep := range seq.Repetitions {
		for _, o := range rep.Occurrences {
			assert.True(t, o.Timestamp.Before(t0.Add(time.Hour)), "occurrence %s belongs to cluster 2", o.Timestamp)
		}
	}

	// Each edge is grouped once, in the earliest cluster holding it.
	c2 := report.Clusters[1]
	assert.Len(t, c2.Rules, 2)
	assert.Empty(t, c2.Groups)
	assert.Empty(t, c2.Sequences)
}

func TestRun_SingletonClusterInvalid(t *testing.T) {
	events := []event.Event{
		ev(0, 10, 11),
		ev(time.Second, 11, 12),
		ev(400*time.Second, 20, 21),
	}
	params := testParams()
	params.GapThreshold = 300 * time.Second

	report, err := Run(testCtx(), newStore(t, events), params)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalEvents)
	assert.Equal(t, 2, report.RetainedEvents)
	assert.Zero(t, report.Outliers)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, 1, report.Clusters[0].ClusterID)
	assert.Equal(t, 2, report.Clusters[0].Size)
	for _, r := range report.Clusters[0].Rules {
		assert.NotEqual(t, int64(20), r.Antecedent)
	}
}

func TestRun_OutliersNeverReachOutput(t *testing.T) {
	report, err := Run(testCtx(), newStore(t, stationEvents()), testParams())
	require.NoError(t, err)

	data, err := report.Marshal()
	require.NoError(t, err)

	for _, c := range report.Clusters {
		for _, r := range c.Rules {
			assert.NotEqual(t, int64(9), r.Antecedent)
		}
		for _, s := range c.Sequences {
			for _, rep := range s.Repetitions {
				for _, o := range rep.Occurrences {
					assert.False(t, o.Timestamp.Equal(t0.Add(20*time.Minute)))
				}
			}
		}
	}
	assert.NotEmpty(t, data)
}

func TestRun_EmptyInput(t *testing.T) {
	report, err := Run(testCtx(), newStore(t, nil), testParams())
	require.NoError(t, err)

	assert.Zero(t, report.TotalEvents)
	assert.NotNil(t, report.Clusters)
	assert.Empty(t, report.Clusters)
	assert.Empty(t, report.Sequences())
	assert.NotNil(t, report.Ungrouped)
}

func TestRun_NoRulesIsNotAnError(t *testing.T) {
	params := testParams()
	params.MinConfidence = 1
	params.MinSupport = 0.9

	report, err := Run(testCtx(), newStore(t, stationEvents()), params)
	require.NoError(t, err)

	for _, c := range report.Clusters {
		assert.Empty(t, c.Rules)
		assert.Empty(t, c.Groups)
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := newStore(t, stationEvents())

	first, err := Run(testCtx(), store, testParams(), WithRunID("same"))
	require.NoError(t, err)
	second, err := Run(testCtx(), store, testParams(), WithRunID("same"))
	require.NoError(t, err)

	a, err := first.Marshal()
	require.NoError(t, err)
	b, err := second.Marshal()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRun_DefaultRunID(t *testing.T) {
	a, err := Run(testCtx(), newStore(t, nil), testParams())
	require.NoError(t, err)
	b, err := Run(testCtx(), newStore(t, nil), testParams())
	require.NoError(t, err)

	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRun_InvalidInvocation(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		//nolint:staticcheck // exercising nil guard
		_, err := Run(nil, newStore(t, nil), testParams())
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := Run(testCtx(), nil, testParams())
		assert.ErrorIs(t, err, ErrNilStore)
	})
}

func TestRun_ConfigurationErrorBeforeComputation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Params)
		field  string
	}{
		{"support above one", func(p *config.Params) { p.MinSupport = 1.5 }, "min_support"},
		{"negative gap", func(p *config.Params) { p.GapThreshold = -time.Second }, "gap_threshold"},
		{"zero cluster size", func(p *config.Params) { p.MinClusterSize = 0 }, "min_cluster_size"},
		{"zero confidence", func(p *config.Params) { p.MinConfidence = 0 }, "min_confidence"},
		{"zero repetitions", func(p *config.Params) { p.MinRepetitions = 0 }, "min_repetitions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)

			h := newTestLogHandler()
			metrics := newRecordingMetrics()
			report, err := Run(testCtx(), newStore(t, stationEvents()), params,
				WithLogger(slog.New(h)),
				WithMetricsRecorder(metrics))

			assert.Nil(t, report)
			require.Error(t, err)
			assert.True(t, mineerrors.IsConfiguration(err))

			var cfgErr *mineerrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)

			assert.Empty(t, metrics.stages, "no stage runs on invalid parameters")
			assert.Empty(t, h.getRecords())
		})
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, newStore(t, stationEvents()), testParams())

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, StageSegment, cancelErr.Stage)
	assert.False(t, cancelErr.WasExecuting)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, mineerrors.IsRetryable(err))
}

func TestRun_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	withStages(t, []stage{
		{name: StageSegment, fn: segmentStage},
		{name: "cancel", fn: func(_ context.Context, _ *runState) (int, error) {
			cancel()
			return 0, nil
		}},
		{name: StageMine, fn: mineStage},
	})

	_, err := Run(ctx, newStore(t, stationEvents()), testParams())

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, StageMine, cancelErr.Stage)
}

func TestRun_StageError(t *testing.T) {
	boom := errors.New("boom")
	withStages(t, []stage{
		{name: StageSegment, fn: segmentStage},
		{name: "failing", fn: func(_ context.Context, _ *runState) (int, error) {
			return 0, boom
		}},
	})

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "failing", stageErr.Stage)
	assert.Equal(t, "execute", stageErr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestRun_StagePanic(t *testing.T) {
	withStages(t, []stage{
		{name: "panicky", fn: func(_ context.Context, _ *runState) (int, error) {
			panic("unexpected state")
		}},
	})

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams())

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "panicky", panicErr.Stage)
	assert.Equal(t, "unexpected state", panicErr.Value)
	assert.Contains(t, panicErr.Stack, "goroutine")
}

// withStages swaps the stage list for the duration of a test.
func withStages(t *testing.T, stages []stage) {
	t.Helper()
	original := pipelineStages
	pipelineStages = stages
	t.Cleanup(func() { pipelineStages = original })
}
