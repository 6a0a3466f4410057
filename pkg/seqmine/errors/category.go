// Package errors provides the error taxonomy shared by every seqmine stage.
//
// The package separates failures by how a caller should react:
//   - Input: a record in the dataset is malformed; fix the data.
//   - Configuration: a parameter is out of range; fix the parameters.
//   - Cancelled: the run was abandoned; it is safe to run again.
//   - Internal: anything else.
//
// Empty results (no clusters, no rules, no repetitions) are not errors and
// never surface here.
package errors

import (
	"context"
	"errors"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryInternal is the fallback for unclassified failures.
	CategoryInternal Category = iota

	// CategoryInput indicates a malformed dataset record.
	CategoryInput

	// CategoryConfiguration indicates an invalid parameter.
	CategoryConfiguration

	// CategoryCancelled indicates the caller abandoned the run.
	CategoryCancelled
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInternal:
		return "internal"
	case CategoryInput:
		return "input"
	case CategoryConfiguration:
		return "configuration"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryInternal
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return CategoryInput
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return CategoryConfiguration
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCancelled
	}

	return CategoryInternal
}

// IsRetryable reports whether re-running the same invocation may succeed.
// Runs are idempotent, so only cancellation qualifies.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryCancelled
}

// IsInput reports whether err is caused by a malformed record.
func IsInput(err error) bool {
	return Categorize(err) == CategoryInput
}

// IsConfiguration reports whether err is caused by an invalid parameter.
func IsConfiguration(err error) bool {
	return Categorize(err) == CategoryConfiguration
}
