package seqmine

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/completion"
	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/randalmurphal/seqmine/pkg/seqmine/grouping"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
	"github.com/randalmurphal/seqmine/pkg/seqmine/observability"
	"github.com/randalmurphal/seqmine/pkg/seqmine/segment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage names, in execution order.
const (
	StageSegment  = "segment"
	StageMine     = "mine"
	StageGroup    = "group"
	StageComplete = "complete"
)

// stageFunc runs one stage against the shared run state and reports how many
// items it produced.
type stageFunc func(ctx context.Context, st *runState) (int, error)

type stage struct {
	name string
	fn   stageFunc
}

var pipelineStages = []stage{
	{name: StageSegment, fn: segmentStage},
	{name: StageMine, fn: mineStage},
	{name: StageGroup, fn: groupStage},
	{name: StageComplete, fn: completeStage},
}

// runState is owned by a single run and never shared.
type runState struct {
	events *event.Store
	params config.Params

	seg       *segment.Segmentation
	index     *segment.Index
	mined     []*mining.Result
	rules     []mining.Rule
	grouped   *grouping.Result
	sequences map[int][]completion.Result
}

// Run mines the event snapshot and returns the report.
//
// Parameters are validated before any computation; an invalid set returns the
// joined ConfigurationErrors. Empty input is not an error: the report simply
// has no clusters. When a report store is configured the report is saved only
// after every stage succeeded.
//
// Run holds no state between calls. Running it twice on the same snapshot
// with the same parameters and run ID yields byte-identical reports.
//
// Example:
//
//	events, err := event.ParseRecords(rows)
//	if err != nil {
//	    return err
//	}
//	report, err := seqmine.Run(ctx, events, config.Default())
func Run(ctx context.Context, store *event.Store, params config.Params, opts ...RunOption) (report *Report, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	runID := cfg.runID
	if runID == "" {
		runID = newRunID()
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID, store.Len())

	execCtx := ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, runID, store.Len())
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	st := &runState{events: store, params: params}
	lastStage, runErr := runStages(execCtx, st, &cfg)
	if runErr == nil {
		report = st.report(runID)
		if cfg.reportStore != nil {
			runErr = persistReport(execCtx, &cfg, report)
		}
	}

	duration := time.Since(startTime)
	durationMs := float64(duration.Microseconds()) / 1000.0
	cfg.metrics.RecordRun(execCtx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, lastStage)
		return nil, runErr
	}
	observability.LogRunComplete(cfg.logger, runID, durationMs, len(report.Clusters), len(report.Sequences()))
	return report, nil
}

// runStages executes the stages in order. It returns the name of the last
// stage attempted and the first error.
func runStages(ctx context.Context, st *runState, cfg *runConfig) (string, error) {
	last := ""
	for _, s := range pipelineStages {
		last = s.name

		select {
		case <-ctx.Done():
			return last, &CancellationError{
				Stage:        s.name,
				Cause:        ctx.Err(),
				WasExecuting: false,
			}
		default:
		}

		observability.LogStageStart(cfg.logger, s.name)

		stageCtx := ctx
		var span trace.Span
		if cfg.tracingEnabled {
			stageCtx, span = cfg.spans.StartStageSpan(ctx, s.name)
		}

		stageStart := time.Now()
		items, err := executeStage(stageCtx, s, st)
		stageDuration := time.Since(stageStart)

		cfg.metrics.RecordStageExecution(stageCtx, s.name, stageDuration, err)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(span, err)
		}

		if err != nil {
			observability.LogStageError(cfg.logger, s.name, err)
			return last, err
		}
		cfg.metrics.RecordStageItems(stageCtx, s.name, int64(items))
		observability.LogStageComplete(cfg.logger, s.name, float64(stageDuration.Microseconds())/1000.0, items)
	}
	return last, nil
}

// executeStage runs a single stage with panic recovery.
func executeStage(ctx context.Context, s stage, st *runState) (items int, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = 0
			err = &PanicError{
				Stage: s.name,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	items, err = s.fn(ctx, st)
	if err != nil {
		var cancelErr *CancellationError
		if errors.As(err, &cancelErr) {
			return items, err
		}
		return items, &StageError{
			Stage: s.name,
			Op:    "execute",
			Err:   err,
		}
	}
	return items, nil
}

func segmentStage(_ context.Context, st *runState) (int, error) {
	seg, err := segment.Segment(st.events.Events(), st.params.GapThreshold, st.params.MinClusterSize)
	if err != nil {
		return 0, err
	}
	st.seg = seg
	st.index = seg.Index()
	return len(seg.ValidClusters()), nil
}

func mineStage(_ context.Context, st *runState) (int, error) {
	mp := st.params.Mining()

	if st.params.Scope == config.ScopeGlobal {
		res, err := mining.Mine(st.seg.Events, mp)
		if err != nil {
			return 0, err
		}
		st.mined = []*mining.Result{res}
	} else {
		results, err := mining.MineClusters(st.seg, mp)
		if err != nil {
			return 0, err
		}
		st.mined = results
	}

	st.rules = []mining.Rule{}
	for _, res := range st.mined {
		st.rules = append(st.rules, res.Rules...)
	}
	return len(st.rules), nil
}

func groupStage(_ context.Context, st *runState) (int, error) {
	res, err := grouping.Build(st.rules, st.index, st.params.Grouping())
	if err != nil {
		return 0, err
	}
	st.grouped = res
	return len(res.Groups), nil
}

// completeStage evaluates every group with at least MinGroupRules rules and
// keeps those reaching the repetition floor.
func completeStage(ctx context.Context, st *runState) (int, error) {
	cp := st.params.Completion()
	st.sequences = make(map[int][]completion.Result)

	qualified := 0
	for _, g := range st.grouped.Groups {
		if err := ctx.Err(); err != nil {
			return qualified, &CancellationError{
				Stage:        StageComplete,
				Cause:        err,
				WasExecuting: true,
			}
		}
		if len(g.Rules) < st.params.MinGroupRules {
			continue
		}

		res, err := completion.Count(g, completion.Occurrences(g, st.index), cp)
		if err != nil {
			return qualified, err
		}
		if !res.Qualified {
			continue
		}
		st.sequences[g.ClusterID] = append(st.sequences[g.ClusterID], *res)
		qualified++
	}
	return qualified, nil
}

// report assembles the per-cluster output.
func (st *runState) report(runID string) *Report {
	r := &Report{
		RunID:          runID,
		Params:         st.params,
		TotalEvents:    st.events.Len(),
		RetainedEvents: len(st.seg.Retained()),
		Outliers:       st.seg.Outliers,
		Clusters:       []ClusterReport{},
		Mining:         make([]MiningStats, 0, len(st.mined)),
		Ungrouped:      st.grouped.Ungrouped,
	}

	for _, m := range st.mined {
		r.Mining = append(r.Mining, MiningStats{
			ClusterID:     m.ClusterID,
			TotalEvents:   m.TotalEvents,
			MinSupport:    m.MinSupport,
			FrequentItems: m.FrequentItems,
			Truncated:     m.Truncated,
			Rules:         len(m.Rules),
		})
	}

	// Globally mined rules belong to the cluster grouping resolved them to.
	resolved := make(map[event.Pair]int)
	for _, g := range st.grouped.Groups {
		for _, rule := range g.Rules {
			resolved[rule.Pair()] = g.ClusterID
		}
	}

	for _, id := range st.seg.ValidClusters() {
		c := ClusterReport{
			ClusterID: id,
			Size:      st.seg.Sizes[id],
			Rules:     []mining.Rule{},
			Groups:    []grouping.PatternGroup{},
			Sequences: []completion.Result{},
		}

		for _, rule := range st.rules {
			switch {
			case rule.ClusterID == id:
				c.Rules = append(c.Rules, rule)
			case rule.ClusterID == mining.Unclustered:
				if cid, ok := resolved[rule.Pair()]; ok && cid == id {
					rule.ClusterID = id
					c.Rules = append(c.Rules, rule)
				}
			}
		}
		for _, g := range st.grouped.Groups {
			if g.ClusterID == id {
				c.Groups = append(c.Groups, g)
			}
		}
		c.Sequences = append(c.Sequences, st.sequences[id]...)

		r.Clusters = append(r.Clusters, c)
	}
	return r
}

// persistReport saves the report. A failure fails the run only when
// WithStoreFailureFatal is set.
func persistReport(ctx context.Context, cfg *runConfig, report *Report) error {
	size, err := saveReport(ctx, cfg.reportStore, report, cfg.storeRetry)
	if err != nil {
		if cfg.storeFailureFatal {
			return err
		}
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			observability.LogReportSaveError(cfg.logger, report.RunID, storeErr.Op, storeErr.Err)
		}
		return nil
	}

	observability.LogReportSaved(cfg.logger, report.RunID, size)
	cfg.metrics.RecordReportSize(ctx, int64(size))
	cfg.spans.AddSpanEvent(ctx, "report.saved", attribute.Int("size_bytes", size))
	return nil
}
