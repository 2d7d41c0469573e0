package schema

import (
	"errors"
	"fmt"
)

// ValidationError represents a single problem found in a document.
type ValidationError struct {
	Path   string // Location in the document, e.g. "transitions[2].to"
	Reason string // Human-readable reason for failure
	Value  any    // The offending value, if any
	Err    error  // Domain sentinel, if any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Reason, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
