package errors

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by InputError.
var (
	// ErrMissingField indicates a required event field is empty or absent.
	ErrMissingField = errors.New("missing required field")

	// ErrMalformedField indicates a field could not be parsed.
	ErrMalformedField = errors.New("malformed field")

	// ErrFieldCount indicates a record does not have exactly three fields.
	ErrFieldCount = errors.New("record must have exactly 3 fields")
)

// InputError reports a malformed or incomplete event record.
// It is fatal for the dataset it came from and is never retried.
type InputError struct {
	// Record is the 0-based index of the offending data record.
	Record int
	// Field names the offending field ("timestamp", "origin", "destination").
	// Empty when the record as a whole is malformed.
	Field string
	// Value is the raw field value, if any.
	Value string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %v", e.Record, e.Err)
	}
	if e.Value == "" {
		return fmt.Sprintf("record %d: field %s: %v", e.Record, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: field %s %q: %v", e.Record, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InputError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an out-of-range or inconsistent parameter.
// It is raised before any computation starts.
type ConfigurationError struct {
	// Field is the parameter name as it appears in configuration files.
	Field string
	// Rule is the violated constraint (e.g. "gte", "lte", "oneof").
	Rule string
	// Value is the rejected value.
	Value any
	// Message is a human-readable explanation.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s (%v): violates %s", e.Field, e.Value, e.Rule)
}

// Invalid builds a ConfigurationError with an explanatory message.
func Invalid(field string, value any, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Message: message}
}
