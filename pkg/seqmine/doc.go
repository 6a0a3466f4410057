/*
Package seqmine discovers recurring multi-step sequential patterns in a stream
of directed events.

# Overview

An event is a timestamped transition from an origin to a destination. seqmine
finds groups of origin => destination transitions that repeat together, close
together in time, more than a minimum number of times. A run has four stages:

  - segment: split the time-sorted stream into clusters at gaps wider than
    gap_threshold and flag isolated events as outliers
  - mine: count origin/destination items per valid cluster (or globally) and
    derive rules a => c with support and confidence
  - group: place each rule in one cluster and join rules whose occurrences
    fall within time_window of each other
  - complete: walk each group's occurrences and count complete repetitions,
    windows in which every rule of the group fires

Events excluded by segmentation never reach a later stage.

# Basic Usage

Parse a three-column table, then run with a parameter set:

	rows := [][]string{
	    {"timestamp", "origin", "destination"},
	    {"2024-03-01 08:00:00", "1", "2"},
	    {"2024-03-01 08:00:05", "3", "4"},
	}
	events, err := event.ParseRecords(rows)
	if err != nil {
	    log.Fatal(err) // *errors.InputError names the record and field
	}

	params := config.Default()
	params.MinRepetitions = 3

	report, err := seqmine.Run(ctx, events, params)
	if err != nil {
	    log.Fatal(err)
	}
	for _, c := range report.Clusters {
	    for _, seq := range c.Sequences {
	        fmt.Println(c.ClusterID, seq.Group.Pairs(), seq.Count)
	    }
	}

# Configuration

config.Load layers defaults, an optional YAML file and SEQMINE_ environment
variables, then validates. Invalid parameters are rejected before any stage
runs:

	params, err := config.Load("seqmine.yaml")

# Persistence

Reports can be saved after a successful run and loaded later:

	store, err := runstore.NewSQLiteStore("./seqmine.db")
	report, err := seqmine.Run(ctx, events, params,
	    seqmine.WithReportStore(store),
	    seqmine.WithRunID("station-a-2024-03"))

	loaded, err := seqmine.LoadReport(store, "station-a-2024-03")

Save failures are logged and ignored unless WithStoreFailureFatal(true) is set.

# Batch Runs

Independent datasets or parameter sweeps run concurrently with RunBatch.
Each job owns its own state; only the batch-wide options are shared.

# Observability

	report, err := seqmine.Run(ctx, events, params,
	    seqmine.WithLogger(logger),
	    seqmine.WithMetrics(true),
	    seqmine.WithTracing(true))

Metrics and spans use the global OpenTelemetry providers.

# Error Handling

  - *errors.InputError: malformed or missing event field
  - *errors.ConfigurationError: out-of-range parameter, joined with errors.Join
  - *StageError: a stage failed
  - *PanicError: a stage panicked; includes the stack
  - *CancellationError: the context was cancelled; nothing was persisted
  - *StoreError: report persistence failed

Empty results (no clusters, no rules, no repetitions) are not errors.
*/
package seqmine
