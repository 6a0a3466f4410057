package seqmine

import (
	"errors"
	"fmt"
)

// Sentinel errors for run setup.
var (
	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNilStore indicates Run() or LoadReport() was called without a store.
	ErrNilStore = errors.New("store cannot be nil")

	// ErrReportVersionMismatch indicates a persisted report uses an unknown format.
	ErrReportVersionMismatch = errors.New("report version mismatch")
)

// StageError wraps an error with stage context.
type StageError struct {
	// Stage is the pipeline stage that failed ("segment", "mine", "group", "complete").
	Stage string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the stage.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from stage execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// Stage is the stage that panicked.
	Stage string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

// CancellationError reports an abandoned run. Nothing is persisted for a
// cancelled run; re-running it from the same input is safe.
type CancellationError struct {
	// Stage is the stage that was about to execute or was executing.
	Stage string
	// Cause is the underlying cancellation cause (context.Canceled or context.DeadlineExceeded).
	Cause error
	// WasExecuting is true if cancellation was observed inside a stage.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during stage %s: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("cancelled before stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// StoreError wraps errors from report persistence.
type StoreError struct {
	// RunID is the run whose report was being persisted or loaded.
	RunID string
	// Op is the operation that failed ("marshal", "save", "load", "decode").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("report %s for run %s: %v", e.Op, e.RunID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error {
	return e.Err
}
