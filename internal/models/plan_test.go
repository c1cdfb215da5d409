package models

import (
	"math"
	"testing"
)

func TestWidenRelaxesThresholds(t *testing.T) {
	cfg := DefaultDetectionConfig()
	widened := cfg.Widen()

	if widened.ZScoreThreshold >= cfg.ZScoreThreshold {
		t.Errorf("z-score threshold not relaxed: %v -> %v", cfg.ZScoreThreshold, widened.ZScoreThreshold)
	}
	if widened.HHICeiling >= cfg.HHICeiling {
		t.Errorf("HHI ceiling not relaxed: %v -> %v", cfg.HHICeiling, widened.HHICeiling)
	}
	if widened.PeakSigma >= cfg.PeakSigma {
		t.Errorf("peak sigma not relaxed: %v -> %v", cfg.PeakSigma, widened.PeakSigma)
	}
	if widened.MinSampleSize != cfg.MinSampleSize-1 {
		t.Errorf("min sample size: got %d, want %d", widened.MinSampleSize, cfg.MinSampleSize-1)
	}

	// The receiver must be untouched.
	if cfg.ZScoreThreshold != 2.5 || cfg.MinSampleSize != 5 {
		t.Error("Widen mutated its receiver")
	}
}

func TestWidenRespectsFloors(t *testing.T) {
	cfg := DefaultDetectionConfig()
	for i := 0; i < 50; i++ {
		cfg = cfg.Widen()
	}
	if cfg.ZScoreThreshold < 1.5 {
		t.Errorf("z-score threshold fell through floor: %v", cfg.ZScoreThreshold)
	}
	if cfg.MinSampleSize < 3 {
		t.Errorf("min sample size fell through floor: %d", cfg.MinSampleSize)
	}
	if math.IsNaN(cfg.HHICeiling) || cfg.HHICeiling < 0 {
		t.Errorf("HHI ceiling degenerated: %v", cfg.HHICeiling)
	}
}

func TestPlanCloneIsDeep(t *testing.T) {
	plan := InvestigationPlan{
		Objective: "obj",
		Steps: []PlanStep{
			{ID: "a"},
			{ID: "b", DependsOn: []string{"a"}, Detection: DefaultDetectionConfig()},
		},
	}

	clone := plan.Clone()
	clone.Steps[1].DependsOn[0] = "mutated"
	clone.Steps[1].Detection.SuspiciousPeriods[0] = 99

	if plan.Steps[1].DependsOn[0] != "a" {
		t.Error("DependsOn mutation leaked into original")
	}
	if plan.Steps[1].Detection.SuspiciousPeriods[0] != 12 {
		t.Error("SuspiciousPeriods mutation leaked into original")
	}
}

func TestPlanStepLookup(t *testing.T) {
	plan := InvestigationPlan{Steps: []PlanStep{{ID: "a"}, {ID: "b"}}}
	if got := plan.Step("b"); got == nil || got.ID != "b" {
		t.Fatalf("Step(b) = %+v", got)
	}
	if got := plan.Step("missing"); got != nil {
		t.Fatalf("Step(missing) = %+v, want nil", got)
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) || !SeverityHigh.AtLeast(SeverityMedium) ||
		!SeverityMedium.AtLeast(SeverityLow) || !SeverityLow.AtLeast(SeverityLow) {
		t.Error("severity ordering broken")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low must not outrank medium")
	}
}
