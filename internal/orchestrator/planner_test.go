package orchestrator

import (
	"testing"
	"time"

	"github.com/spendlens/spendlens-engine/internal/detectors"
	"github.com/spendlens/spendlens-engine/internal/fetch"
	"github.com/spendlens/spendlens-engine/internal/models"
)

func TestBuildPlanFanOutByIntent(t *testing.T) {
	detection := models.DefaultDetectionConfig()

	cases := []struct {
		intent models.Intent
		wants  []string
	}{
		{models.IntentContractAnomalies, []string{
			detectors.CapabilityStatistical, detectors.CapabilityConcentration, detectors.CapabilitySpectral,
		}},
		{models.IntentVendorPatterns, []string{
			detectors.CapabilityConcentration, detectors.CapabilityStatistical,
		}},
		{models.IntentSpendingTrends, []string{
			detectors.CapabilitySpectral, detectors.CapabilityStatistical,
		}},
		{models.IntentGeneralQuery, []string{detectors.CapabilityStatistical}},
	}

	for _, tc := range cases {
		plan := buildPlan(models.Classification{Intent: tc.intent}, detection, 10*time.Second, nil)

		if len(plan.Steps) != len(tc.wants)+1 {
			t.Fatalf("%s: %d steps, want %d", tc.intent, len(plan.Steps), len(tc.wants)+1)
		}
		if plan.Steps[0].Capability != fetch.CapabilityFetch {
			t.Fatalf("%s: first step is %s, want fetch", tc.intent, plan.Steps[0].Capability)
		}
		for i, capability := range tc.wants {
			step := plan.Steps[i+1]
			if step.Capability != capability {
				t.Errorf("%s: step %d = %s, want %s", tc.intent, i+1, step.Capability, capability)
			}
			if len(step.DependsOn) != 1 || step.DependsOn[0] != stepFetch {
				t.Errorf("%s: step %s deps = %v", tc.intent, step.ID, step.DependsOn)
			}
			if step.Detection.ZScoreThreshold != detection.ZScoreThreshold {
				t.Errorf("%s: detection config not propagated", tc.intent)
			}
		}
	}
}

func TestBuildPlanDefaultsDateRange(t *testing.T) {
	plan := buildPlan(models.Classification{Intent: models.IntentContractAnomalies}, models.DefaultDetectionConfig(), time.Second, nil)

	spec := plan.Steps[0].Query
	if spec.Start.IsZero() || spec.End.IsZero() {
		t.Fatalf("expected default date window, got %+v", spec)
	}
	years := spec.End.Sub(spec.Start).Hours() / 24 / 365
	if years < 1.9 || years > 2.1 {
		t.Fatalf("default window spans %.2f years, want ~2", years)
	}
}

func TestBuildPlanCarriesEntities(t *testing.T) {
	c := models.Classification{
		Intent: models.IntentVendorPatterns,
		Entities: models.Entities{
			Organization: "DOT",
			Categories:   []string{"construction"},
			MinValue:     50_000,
			DateRange: models.TimeRange{
				Start: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	plan := buildPlan(c, models.DefaultDetectionConfig(), time.Second, nil)

	spec := plan.Steps[0].Query
	if spec.Organization != "DOT" || spec.MinValue != 50_000 {
		t.Fatalf("query spec = %+v", spec)
	}
	if spec.Start.Year() != 2022 || spec.End.Year() != 2023 {
		t.Fatalf("date range not carried: %+v", spec)
	}
}

func TestRevisePlanWidensAndCompletesFanOut(t *testing.T) {
	detection := models.DefaultDetectionConfig()
	plan := buildPlan(models.Classification{Intent: models.IntentVendorPatterns}, detection, time.Second, nil)
	originalStart := plan.Steps[0].Query.Start

	revised := revisePlan(plan, 1)

	// The original plan must be untouched.
	if plan.Steps[0].Query.Start != originalStart {
		t.Fatal("revisePlan mutated the original plan")
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("original plan grew to %d steps", len(plan.Steps))
	}

	// One fetch plus the full detector fan-out after revision.
	if len(revised.Steps) != 4 {
		t.Fatalf("revised plan has %d steps, want 4", len(revised.Steps))
	}
	if revised.Steps[0].Query.Start.Before(originalStart.AddDate(-1, 0, -1)) ||
		!revised.Steps[0].Query.Start.Before(originalStart) {
		t.Fatalf("fetch window not extended: %v -> %v", originalStart, revised.Steps[0].Query.Start)
	}

	for _, step := range revised.Steps[1:] {
		if step.Detection.ZScoreThreshold >= detection.ZScoreThreshold {
			t.Errorf("step %s thresholds not widened", step.ID)
		}
	}

	present := map[string]bool{}
	for _, step := range revised.Steps {
		present[step.Capability] = true
	}
	if !present[detectors.CapabilitySpectral] {
		t.Error("reflection pass did not add the missing detector")
	}
}
