package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// Sentinel errors forming the engine's failure taxonomy. Step-level errors
// are absorbed into degraded outcomes; only an OrchestrationFault surfaces a
// FAILED investigation.
var (
	// ErrInvalidQuery marks a caller error; never retried.
	ErrInvalidQuery = errors.New("query cannot be classified")
	// ErrAgentUnavailable signals pool exhaustion after a bounded wait.
	ErrAgentUnavailable = errors.New("agent not available")
	// ErrDataSourceUnavailable marks a failed, non-fatal fetch step.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	// ErrRateLimited tells the caller to back off before refetching.
	ErrRateLimited = errors.New("data source rate limited")
	// ErrNotFound signals an unknown investigation id.
	ErrNotFound = errors.New("investigation not found")
)

// AgentExecutionError captures a fault local to one agent invocation.
type AgentExecutionError struct {
	Capability string
	Err        error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.Capability, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// OrchestrationFault is an internal bug in the orchestration logic itself,
// not a data or detector issue. The trace id is surfaced to the caller.
type OrchestrationFault struct {
	TraceID string
	Err     error
}

func (e *OrchestrationFault) Error() string {
	return fmt.Sprintf("orchestration fault (trace %s): %v", e.TraceID, e.Err)
}

func (e *OrchestrationFault) Unwrap() error { return e.Err }
