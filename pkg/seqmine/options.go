package seqmine

import (
	"log/slog"

	"github.com/google/uuid"
	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
	"github.com/randalmurphal/seqmine/pkg/seqmine/observability"
	"github.com/randalmurphal/seqmine/pkg/seqmine/runstore"
)

// runConfig holds configuration for one pipeline run.
type runConfig struct {
	runID string

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	metricsEnabled bool
	spans          observability.SpanManager
	tracingEnabled bool

	reportStore       runstore.Store
	storeFailureFatal bool
	storeRetry        mineerrors.RetryConfig
}

// defaultRunConfig returns the default run configuration.
// Logging goes to slog.Default(); metrics and tracing are off.
func defaultRunConfig() runConfig {
	return runConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},

		storeRetry: mineerrors.NoRetry,
	}
}

// RunOption configures run behavior.
type RunOption func(*runConfig)

// WithRunID sets the run identifier used in logs, spans and the report key.
// Default: a random UUID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		c.metricsEnabled = enabled
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder routes metrics to a specific recorder.
// A nil recorder disables metrics.
func WithMetricsRecorder(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder == nil {
			c.metricsEnabled = false
			c.metrics = observability.NoopMetrics{}
			return
		}
		c.metricsEnabled = true
		c.metrics = recorder
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithReportStore persists the report after a successful run.
//
// Example:
//
//	store, _ := runstore.NewSQLiteStore("./seqmine.db")
//	report, err := seqmine.Run(ctx, events, params,
//	    seqmine.WithReportStore(store),
//	    seqmine.WithRunID("nightly-2024-03-01"))
func WithReportStore(store runstore.Store) RunOption {
	return func(c *runConfig) {
		c.reportStore = store
	}
}

// WithStoreFailureFatal makes a failed report save fail the run.
// Default: false, the failure is logged and the report is still returned.
func WithStoreFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.storeFailureFatal = fatal
	}
}

// WithStoreRetry retries a failed report save with backoff. Closed stores and
// empty run IDs are never retried. Default: mineerrors.NoRetry.
//
// Example:
//
//	seqmine.Run(ctx, events, params,
//	    seqmine.WithReportStore(store),
//	    seqmine.WithStoreRetry(mineerrors.DefaultRetry))
func WithStoreRetry(retry mineerrors.RetryConfig) RunOption {
	return func(c *runConfig) {
		c.storeRetry = retry
	}
}

func newRunID() string {
	return uuid.NewString()
}
