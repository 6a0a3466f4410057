package seqmine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func ev(offset time.Duration, origin, destination int64) event.Event {
	return event.Event{Timestamp: t0.Add(offset), Origin: origin, Destination: destination}
}

// stationEvents holds two clusters separated by one outlier:
//   - cluster 1: 1=>2 then 3=>4, three times, 30s apart
//   - outlier 9=>9 at 20m
//   - cluster 2: 5=>6 then 6=>7, once
func stationEvents() []event.Event {
	return []event.Event{
		ev(0, 1, 2),
		ev(5*time.Second, 3, 4),
		ev(30*time.Second, 1, 2),
		ev(35*time.Second, 3, 4),
		ev(60*time.Second, 1, 2),
		ev(65*time.Second, 3, 4),
		ev(20*time.Minute, 9, 9),
		ev(40*time.Minute, 5, 6),
		ev(40*time.Minute+time.Second, 6, 7),
	}
}

func newStore(t *testing.T, events []event.Event) *event.Store {
	t.Helper()
	store, err := event.NewStore(events)
	require.NoError(t, err)
	return store
}

func testParams() config.Params {
	p := config.Default()
	p.GapThreshold = 5 * time.Minute
	p.MinClusterSize = 2
	p.MinSupport = 0.01
	p.MinConfidence = 0.5
	p.TimeWindow = 20 * time.Second
	p.MinRepetitions = 2
	p.MinGroupRules = 2
	return p
}

func testCtx() context.Context {
	return context.Background()
}

// contextCancelled returns a context that is already cancelled.
func contextCancelled() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx, cancel
}

// testLogHandler captures log records as JSON lines.
type testLogHandler struct {
	mu    sync.Mutex
	buf   *bytes.Buffer
	level slog.Level
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *testLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testLogHandler) getRecords() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()

	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

func (h *testLogHandler) messages() []string {
	var msgs []string
	for _, r := range h.getRecords() {
		if msg, ok := r["msg"].(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// recordingMetrics is a MetricsRecorder that keeps every call.
type recordingMetrics struct {
	mu         sync.Mutex
	stages     []string
	stageErrs  map[string]int
	items      map[string]int64
	runs       []bool
	reportSize []int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		stageErrs: make(map[string]int),
		items:     make(map[string]int64),
	}
}

func (m *recordingMetrics) RecordStageExecution(_ context.Context, stage string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
	if err != nil {
		m.stageErrs[stage]++
	}
}

func (m *recordingMetrics) RecordStageItems(_ context.Context, stage string, items int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[stage] += items
}

func (m *recordingMetrics) RecordRun(_ context.Context, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, success)
}

func (m *recordingMetrics) RecordReportSize(_ context.Context, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportSize = append(m.reportSize, size)
}
