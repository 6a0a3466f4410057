package seqmine

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/seqmine/pkg/seqmine/config"
	"github.com/randalmurphal/seqmine/pkg/seqmine/event"
	"golang.org/x/sync/errgroup"
)

// Job is one independent run in a batch: a dataset and a parameter set.
type Job struct {
	// ID is used as the run ID. Empty means a random UUID.
	ID string

	Events *event.Store
	Params config.Params

	// Options apply to this job only, after the batch-wide options.
	Options []RunOption
}

// BatchConfig configures concurrent execution of jobs.
// All fields have sensible defaults (zero values are valid).
type BatchConfig struct {
	// MaxConcurrency limits the number of jobs running simultaneously.
	// 0 = unlimited.
	MaxConcurrency int

	// FailFast cancels jobs that have not finished when any job fails.
	// false = run every job to completion (default).
	FailFast bool

	// JobTimeout bounds each job. 0 = no timeout.
	JobTimeout time.Duration
}

// JobResult holds the outcome of a single job.
type JobResult struct {
	JobID    string
	Report   *Report
	Error    error
	Duration time.Duration
}

// BatchResult holds the results of every job, in job order.
type BatchResult struct {
	Jobs          []JobResult
	TotalDuration time.Duration

	// Success is true if every job completed without error.
	Success bool
}

// RunBatch runs independent jobs concurrently. Jobs share nothing except the
// batch-wide options (logger, metrics, report store), all of which are safe
// for concurrent use.
//
// The result is always returned. The error joins every job failure in job
// order, or is nil when all jobs succeeded.
//
// Example:
//
//	jobs := make([]seqmine.Job, 0, len(windows))
//	for _, w := range windows {
//	    p := config.Default()
//	    p.TimeWindow = w
//	    jobs = append(jobs, seqmine.Job{Events: events, Params: p})
//	}
//	res, err := seqmine.RunBatch(ctx, jobs, seqmine.BatchConfig{MaxConcurrency: 4})
func RunBatch(ctx context.Context, jobs []Job, bc BatchConfig, opts ...RunOption) (*BatchResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	startTime := time.Now()
	results := make([]JobResult, len(jobs))

	var g *errgroup.Group
	groupCtx := ctx
	if bc.FailFast {
		g, groupCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if bc.MaxConcurrency > 0 {
		g.SetLimit(bc.MaxConcurrency)
	}

	for i, job := range jobs {
		id := job.ID
		if id == "" {
			id = newRunID()
		}
		results[i].JobID = id

		g.Go(func() error {
			jobCtx := groupCtx
			if bc.JobTimeout > 0 {
				var cancel context.CancelFunc
				jobCtx, cancel = context.WithTimeout(groupCtx, bc.JobTimeout)
				defer cancel()
			}

			runOpts := make([]RunOption, 0, len(opts)+len(job.Options)+1)
			runOpts = append(runOpts, opts...)
			runOpts = append(runOpts, job.Options...)
			runOpts = append(runOpts, WithRunID(id))

			jobStart := time.Now()
			report, err := Run(jobCtx, job.Events, job.Params, runOpts...)
			results[i].Report = report
			results[i].Error = err
			results[i].Duration = time.Since(jobStart)

			if bc.FailFast {
				return err
			}
			return nil
		})
	}

	_ = g.Wait() // per-job errors are collected below

	br := &BatchResult{
		Jobs:          results,
		TotalDuration: time.Since(startTime),
		Success:       true,
	}
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			br.Success = false
			errs = append(errs, r.Error)
		}
	}
	return br, errors.Join(errs...)
}
