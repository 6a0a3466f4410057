package seqmine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/randalmurphal/seqmine/pkg/seqmine/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRun_WithLogger(t *testing.T) {
	h := newTestLogHandler()

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams(),
		WithRunID("test-run-123"),
		WithLogger(slog.New(h)))
	require.NoError(t, err)

	records := h.getRecords()
	require.NotEmpty(t, records, "Expected log records")

	var foundRunStart, foundRunComplete bool
	var stageStarts, stageCompletes int

	for _, r := range records {
		msg, _ := r["msg"].(string)
		switch msg {
		case "mining run starting":
			foundRunStart = true
			assert.Equal(t, "test-run-123", r["run_id"])
			assert.EqualValues(t, 9, r["events"])
		case "mining run completed":
			foundRunComplete = true
			assert.Equal(t, "test-run-123", r["run_id"])
			assert.EqualValues(t, 2, r["clusters"])
			assert.EqualValues(t, 1, r["sequences"])
		case "stage starting":
			stageStarts++
		case "stage completed":
			stageCompletes++
		}
	}

	assert.True(t, foundRunStart, "Expected 'mining run starting' log")
	assert.True(t, foundRunComplete, "Expected 'mining run completed' log")
	assert.Equal(t, 4, stageStarts)
	assert.Equal(t, 4, stageCompletes)
}

func TestRun_WithLogger_Error(t *testing.T) {
	h := newTestLogHandler()

	withStages(t, []stage{
		{name: StageSegment, fn: segmentStage},
		{name: "fail", fn: func(_ context.Context, _ *runState) (int, error) {
			return 0, errors.New("boom")
		}},
	})

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams(),
		WithRunID("error-run"),
		WithLogger(slog.New(h)))
	require.Error(t, err)

	var foundStageError, foundRunError bool
	for _, r := range h.getRecords() {
		msg, _ := r["msg"].(string)
		switch msg {
		case "stage failed":
			foundStageError = true
			assert.Equal(t, "fail", r["stage"])
		case "mining run failed":
			foundRunError = true
			assert.Equal(t, "error-run", r["run_id"])
			assert.Equal(t, "fail", r["last_stage"])
		}
	}

	assert.True(t, foundStageError, "Expected 'stage failed' log")
	assert.True(t, foundRunError, "Expected 'mining run failed' log")
}

func TestRun_NilLoggerIsSilent(t *testing.T) {
	report, err := Run(testCtx(), newStore(t, stationEvents()), testParams(), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestRun_WithMetricsRecorder(t *testing.T) {
	metrics := newRecordingMetrics()
	store := runstore.NewMemoryStore()
	defer store.Close()

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams(),
		WithMetricsRecorder(metrics),
		WithReportStore(store))
	require.NoError(t, err)

	assert.Equal(t, []string{StageSegment, StageMine, StageGroup, StageComplete}, metrics.stages)
	assert.Empty(t, metrics.stageErrs)
	assert.Equal(t, []bool{true}, metrics.runs)

	assert.EqualValues(t, 2, metrics.items[StageSegment], "valid clusters")
	assert.EqualValues(t, 4, metrics.items[StageMine], "rules")
	assert.EqualValues(t, 2, metrics.items[StageGroup], "groups")
	assert.EqualValues(t, 1, metrics.items[StageComplete], "qualified sequences")

	require.Len(t, metrics.reportSize, 1)
	assert.Positive(t, metrics.reportSize[0])
}

func TestRun_WithMetricsRecorder_Failure(t *testing.T) {
	metrics := newRecordingMetrics()

	withStages(t, []stage{
		{name: "fail", fn: func(_ context.Context, _ *runState) (int, error) {
			return 0, errors.New("boom")
		}},
	})

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams(), WithMetricsRecorder(metrics))
	require.Error(t, err)

	assert.Equal(t, 1, metrics.stageErrs["fail"])
	assert.Equal(t, []bool{false}, metrics.runs)
	assert.Empty(t, metrics.reportSize)
}

func TestRun_WithMetrics_Enabled(t *testing.T) {
	// No provider configured; the global noop meter absorbs everything.
	report, err := Run(testCtx(), newStore(t, stationEvents()), testParams(), WithMetrics(true))
	require.NoError(t, err)
	assert.Len(t, report.Sequences(), 1)
}

func TestRun_WithTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})

	_, err := Run(testCtx(), newStore(t, stationEvents()), testParams(),
		WithRunID("traced"),
		WithTracing(true))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	names := make([]string, 0, len(spans))
	var runSpan tracetest.SpanStub
	for _, s := range spans {
		names = append(names, s.Name)
		if s.Name == "seqmine.run" {
			runSpan = s
		}
	}

	assert.ElementsMatch(t, []string{
		"seqmine.run",
		"seqmine.stage.segment",
		"seqmine.stage.mine",
		"seqmine.stage.group",
		"seqmine.stage.complete",
	}, names)

	for _, s := range spans {
		if s.Name != "seqmine.run" {
			assert.Equal(t, runSpan.SpanContext.SpanID(), s.Parent.SpanID(), "%s is a child of the run span", s.Name)
		}
	}
}

func TestRun_WithAllObservability(t *testing.T) {
	h := newTestLogHandler()

	report, err := Run(testCtx(), newStore(t, stationEvents()), testParams(),
		WithLogger(slog.New(h)),
		WithMetrics(true),
		WithTracing(true))
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.NotEmpty(t, h.getRecords())
}

func TestRun_ObservabilityOptions_AreApplied(t *testing.T) {
	t.Run("WithMetrics sets metricsEnabled", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithMetrics(true)(&cfg)
		assert.True(t, cfg.metricsEnabled)
		assert.NotNil(t, cfg.metrics)
	})

	t.Run("WithMetrics false sets noop", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithMetrics(false)(&cfg)
		assert.False(t, cfg.metricsEnabled)
	})

	t.Run("WithMetricsRecorder nil sets noop", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithMetricsRecorder(newRecordingMetrics())(&cfg)
		assert.True(t, cfg.metricsEnabled)
		WithMetricsRecorder(nil)(&cfg)
		assert.False(t, cfg.metricsEnabled)
		assert.NotNil(t, cfg.metrics)
	})

	t.Run("WithTracing sets tracingEnabled", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithTracing(true)(&cfg)
		assert.True(t, cfg.tracingEnabled)
		assert.NotNil(t, cfg.spans)
	})

	t.Run("WithTracing false sets noop", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithTracing(false)(&cfg)
		assert.False(t, cfg.tracingEnabled)
	})

	t.Run("WithLogger sets logger", func(t *testing.T) {
		cfg := defaultRunConfig()
		logger := slog.New(newTestLogHandler())
		WithLogger(logger)(&cfg)
		assert.Equal(t, logger, cfg.logger)
	})
}
