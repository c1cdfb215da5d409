package utils

import (
	"errors"
	"testing"
)

func TestAppErrorWrapping(t *testing.T) {
	err := NewAppError("store.open", "open database", ErrNotFound)

	if !errors.Is(err, ErrNotFound) {
		t.Fatal("wrapped sentinel not reachable via errors.Is")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As failed")
	}
	if appErr.Op != "store.open" {
		t.Fatalf("op = %q", appErr.Op)
	}
	want := "store.open: open database: investigation not found"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}

	bare := NewAppError("router.classify", "empty query", nil)
	if bare.Error() != "router.classify: empty query" {
		t.Fatalf("message = %q", bare.Error())
	}
}

func TestAgentExecutionErrorUnwraps(t *testing.T) {
	err := &AgentExecutionError{Capability: "detector.statistical", Err: ErrAgentUnavailable}
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatal("unwrap lost the sentinel")
	}
}

func TestOrchestrationFaultMentionsTrace(t *testing.T) {
	err := &OrchestrationFault{TraceID: "trace-1", Err: errors.New("nil plan")}
	if got := err.Error(); got != "orchestration fault (trace trace-1): nil plan" {
		t.Fatalf("message = %q", got)
	}
}
