package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	forward := []InvestigationStatus{
		StatusReceived, StatusPlanning, StatusDispatching, StatusAggregating, StatusReflecting,
	}
	for i := 0; i < len(forward)-1; i++ {
		if !CanTransition(forward[i], forward[i+1]) {
			t.Errorf("expected %s -> %s to be legal", forward[i], forward[i+1])
		}
	}
	// No going back, no skipping ahead.
	for i := range forward {
		for j := range forward {
			if j == i+1 {
				continue
			}
			if CanTransition(forward[i], forward[j]) {
				t.Errorf("expected %s -> %s to be illegal", forward[i], forward[j])
			}
		}
	}
}

func TestCanTransitionTerminals(t *testing.T) {
	nonTerminal := []InvestigationStatus{
		StatusReceived, StatusPlanning, StatusDispatching, StatusAggregating, StatusReflecting,
	}
	for _, from := range nonTerminal {
		if !CanTransition(from, StatusFailed) {
			t.Errorf("expected %s -> failed to be legal", from)
		}
		if !CanTransition(from, StatusCancelled) {
			t.Errorf("expected %s -> cancelled to be legal", from)
		}
	}
	for _, from := range nonTerminal {
		legal := from == StatusReflecting
		if CanTransition(from, StatusCompleted) != legal {
			t.Errorf("completed reachable from %s: want %v", from, legal)
		}
		if CanTransition(from, StatusPartial) != legal {
			t.Errorf("partial reachable from %s: want %v", from, legal)
		}
	}

	terminals := []InvestigationStatus{StatusCompleted, StatusPartial, StatusFailed, StatusCancelled}
	all := append(append([]InvestigationStatus{}, nonTerminal...), terminals...)
	for _, from := range terminals {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	inv := Investigation{StartedAt: time.Now().Add(-time.Minute)}
	first := time.Now()
	inv.Finish(first)
	inv.Finish(first.Add(time.Hour))

	if !inv.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt moved on second Finish: %v", inv.CompletedAt)
	}
	if inv.ProcessingTime <= 0 {
		t.Fatalf("expected positive processing time, got %v", inv.ProcessingTime)
	}
}

func TestInvestigationCloneIsDeep(t *testing.T) {
	done := time.Now()
	inv := Investigation{
		ID:     "inv-1",
		Status: StatusCompleted,
		Plan: &InvestigationPlan{
			Objective: "obj",
			Steps:     []PlanStep{{ID: "s1", DependsOn: []string{"s0"}}},
		},
		Results:     []AnomalyResult{{Type: "statistical_outlier", RecordIDs: []string{"r1"}}},
		CompletedAt: &done,
		Metadata:    map[string]string{"source": "test"},
	}

	clone := inv.Clone()
	if diff := cmp.Diff(inv, clone); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}

	clone.Plan.Steps[0].DependsOn[0] = "mutated"
	clone.Results[0].RecordIDs[0] = "mutated"
	clone.Metadata["source"] = "mutated"
	*clone.CompletedAt = done.Add(time.Hour)

	if inv.Plan.Steps[0].DependsOn[0] != "s0" {
		t.Error("plan mutation leaked into original")
	}
	if inv.Results[0].RecordIDs[0] != "r1" {
		t.Error("results mutation leaked into original")
	}
	if inv.Metadata["source"] != "test" {
		t.Error("metadata mutation leaked into original")
	}
	if !inv.CompletedAt.Equal(done) {
		t.Error("timestamp mutation leaked into original")
	}
}
