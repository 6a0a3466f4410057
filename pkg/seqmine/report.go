package seqmine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/seqmine/pkg/seqmine/completion"
	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/grouping"
	"github.com/randalmurphal/seqmine/pkg/seqmine/mining"
	"github.com/randalmurphal/seqmine/pkg/seqmine/runstore"
)

// Report is the output of one run. It is deterministic for a given event
// snapshot, parameter set and run ID.
type Report struct {
	RunID  string        `json:"run_id"`
	Params config.Params `json:"params"`

	TotalEvents    int `json:"total_events"`
	RetainedEvents int `json:"retained_events"`
	Outliers       int `json:"outliers"`

	// Clusters holds one entry per valid cluster, ascending by id.
	Clusters []ClusterReport `json:"clusters"`

	// Mining holds one entry per mining scope: one per valid cluster, or a
	// single entry with ClusterID mining.Unclustered for global scope.
	Mining []MiningStats `json:"mining"`

	// Ungrouped lists rules that could not be placed in a single cluster.
	Ungrouped []mining.Rule `json:"ungrouped"`
}

// ClusterReport is the per-cluster output.
type ClusterReport struct {
	ClusterID int `json:"cluster_id"`
	Size      int `json:"size"`

	// Rules resolved to this cluster, in mining order.
	Rules []mining.Rule `json:"rules"`

	// Groups formed in this cluster, in first-seen rule order.
	Groups []grouping.PatternGroup `json:"groups"`

	// Sequences are the groups that reached the repetition floor.
	Sequences []completion.Result `json:"sequences"`
}

// MiningStats summarizes one mining pass.
type MiningStats struct {
	ClusterID     int     `json:"cluster_id"`
	TotalEvents   int     `json:"total_events"`
	MinSupport    float64 `json:"min_support"`
	FrequentItems int     `json:"frequent_items"`
	Truncated     bool    `json:"truncated"`
	Rules         int     `json:"rules"`
}

// Sequences returns every qualifying group across clusters.
func (r *Report) Sequences() []completion.Result {
	var out []completion.Result
	for _, c := range r.Clusters {
		out = append(out, c.Sequences...)
	}
	return out
}

// Marshal serializes the report to JSON.
func (r *Report) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// LoadReport reads a persisted report.
// Returns an error wrapping runstore.ErrNotFound if the run has no report.
func LoadReport(store runstore.Store, runID string) (*Report, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	data, err := store.Load(runID)
	if err != nil {
		return nil, &StoreError{RunID: runID, Op: "load", Err: err}
	}

	rec, err := runstore.Unmarshal(data)
	if err != nil {
		return nil, &StoreError{RunID: runID, Op: "decode", Err: err}
	}
	if rec.Version != runstore.Version {
		return nil, &StoreError{
			RunID: runID,
			Op:    "decode",
			Err:   fmt.Errorf("%w: got %d, want %d", ErrReportVersionMismatch, rec.Version, runstore.Version),
		}
	}

	var report Report
	if err := json.Unmarshal(rec.Report, &report); err != nil {
		return nil, &StoreError{RunID: runID, Op: "decode", Err: err}
	}
	return &report, nil
}

// saveReport wraps the report in a versioned record and stores it, retrying
// the save under retry. Returns the stored size in bytes.
func saveReport(ctx context.Context, store runstore.Store, report *Report, retry mineerrors.RetryConfig) (int, error) {
	data, err := report.Marshal()
	if err != nil {
		return 0, &StoreError{RunID: report.RunID, Op: "marshal", Err: err}
	}

	rec, err := runstore.NewRecord(report.RunID, data).Marshal()
	if err != nil {
		return 0, &StoreError{RunID: report.RunID, Op: "marshal", Err: err}
	}

	if retry.RetryableFunc == nil {
		retry.RetryableFunc = retryableStoreError
	}
	res := mineerrors.WithRetryContext(ctx, retry, func(context.Context) (struct{}, error) {
		return struct{}{}, store.Save(report.RunID, rec)
	})
	if res.Err != nil {
		return 0, &StoreError{RunID: report.RunID, Op: "save", Err: res.Err}
	}
	return len(rec), nil
}

// retryableStoreError excludes store errors that fail the same way every time.
func retryableStoreError(err error) bool {
	if errors.Is(err, runstore.ErrStoreClosed) || errors.Is(err, runstore.ErrEmptyKey) {
		return false
	}
	return mineerrors.Categorize(err) == mineerrors.CategoryInternal
}
