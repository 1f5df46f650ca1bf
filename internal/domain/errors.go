package domain

import (
	"errors"
	"fmt"
)

// Failure categories for a pipeline run. Only quality failures are ever
// retried automatically; the rest become a terminal user-visible message.
var (
	// ErrValidation indicates the constructed query violates a structural
	// invariant (bad geometry, inverted ranges).
	ErrValidation = errors.New("query validation failed")

	// ErrExecution indicates the catalog returned a non-success status.
	ErrExecution = errors.New("catalog execution failed")

	// ErrUnexpected wraps any other fault caught during execution.
	ErrUnexpected = errors.New("unexpected failure")

	// ErrQuality indicates the evaluation gate rejected the answer. This is
	// the one category the pipeline retries, bounded at two corrective
	// passes.
	ErrQuality = errors.New("quality gate failed")

	// ErrMissingArtifact indicates a stage ran without its required
	// upstream output in the record.
	ErrMissingArtifact = errors.New("missing upstream artifact")
)

// ExecutionError carries the catalog's non-200 response for user-facing
// reporting. Not retried automatically.
type ExecutionError struct {
	// StatusCode is the HTTP status returned by the catalog.
	StatusCode int

	// Body is the response body, useful because the catalog returns its
	// diagnostic text in plain form.
	Body string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("catalog returned %d: %s", e.StatusCode, e.Body)
}

func (e *ExecutionError) Unwrap() error { return ErrExecution }

// NewExecutionError creates an ExecutionError from a catalog response.
func NewExecutionError(statusCode int, body string) *ExecutionError {
	return &ExecutionError{StatusCode: statusCode, Body: body}
}

// StageError wraps a failure with the pipeline stage that produced it, so
// the orchestrator's terminal message and logs can name the origin.
type StageError struct {
	// Stage is the pipeline stage name.
	Stage string

	// Err is the underlying failure.
	Err error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with its originating stage name.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
