package orchestrator

import (
	"errors"
	"math"
	"testing"

	"github.com/spendlens/spendlens-engine/internal/detectors"
	"github.com/spendlens/spendlens-engine/internal/fetch"
	"github.com/spendlens/spendlens-engine/internal/models"
)

func fetchOutcome(records int) *stepOutcome {
	recs := make([]models.Record, records)
	return &stepOutcome{
		step:   models.PlanStep{ID: stepFetch, Capability: fetch.CapabilityFetch},
		result: models.AgentResult{Status: models.ResultCompleted, Records: recs},
	}
}

func detectorOutcome(id, capability string, result models.AgentResult) *stepOutcome {
	return &stepOutcome{
		step:   models.PlanStep{ID: id, Capability: capability, DependsOn: []string{stepFetch}},
		result: result,
	}
}

func TestAggregateWeightedConfidence(t *testing.T) {
	outcomes := map[string]*stepOutcome{
		stepFetch: fetchOutcome(100),
		stepStatistical: detectorOutcome(stepStatistical, detectors.CapabilityStatistical, models.AgentResult{
			Status: models.ResultCompleted, Confidence: 0.9, RecordsExamined: 100,
		}),
		stepConcentration: detectorOutcome(stepConcentration, detectors.CapabilityConcentration, models.AgentResult{
			Status: models.ResultCompleted, Confidence: 0.6, RecordsExamined: 50,
		}),
	}

	agg := aggregateOutcomes(outcomes)

	want := (0.9*100 + 0.6*50) / 150
	if math.Abs(agg.confidence-want) > 1e-9 {
		t.Fatalf("confidence = %.4f, want %.4f", agg.confidence, want)
	}
	if agg.recordsAnalyzed != 100 {
		t.Fatalf("recordsAnalyzed = %d, want 100", agg.recordsAnalyzed)
	}
	if agg.detectorSteps != 2 || agg.failedSteps != 0 {
		t.Fatalf("detectorSteps=%d failedSteps=%d", agg.detectorSteps, agg.failedSteps)
	}
}

func TestAggregateFailedDetectorContributesNothing(t *testing.T) {
	outcomes := map[string]*stepOutcome{
		stepFetch: fetchOutcome(40),
		stepStatistical: detectorOutcome(stepStatistical, detectors.CapabilityStatistical, models.AgentResult{
			Status: models.ResultCompleted, Confidence: 0.85, RecordsExamined: 40,
		}),
		stepSpectral: detectorOutcome(stepSpectral, detectors.CapabilitySpectral, models.AgentResult{
			Status: models.ResultTimeout, Err: errors.New("timed out"),
		}),
	}

	agg := aggregateOutcomes(outcomes)

	if math.Abs(agg.confidence-0.85) > 1e-9 {
		t.Fatalf("surviving detector should carry its confidence, got %.4f", agg.confidence)
	}
	if agg.failedSteps != 1 {
		t.Fatalf("failedSteps = %d, want 1", agg.failedSteps)
	}
}

func TestAggregateFetchFailureZeroesConfidence(t *testing.T) {
	outcomes := map[string]*stepOutcome{
		stepFetch: {
			step:   models.PlanStep{ID: stepFetch, Capability: fetch.CapabilityFetch},
			result: models.AgentResult{Status: models.ResultError, Err: errors.New("upstream down")},
		},
		stepStatistical: detectorOutcome(stepStatistical, detectors.CapabilityStatistical, models.AgentResult{
			Status: models.ResultSkipped,
		}),
	}

	agg := aggregateOutcomes(outcomes)

	if !agg.fetchFailed {
		t.Fatal("fetchFailed not set")
	}
	if agg.confidence != 0 {
		t.Fatalf("confidence = %.4f, want 0", agg.confidence)
	}
	if agg.failedSteps != 2 {
		t.Fatalf("failedSteps = %d, want 2", agg.failedSteps)
	}
}

func TestDedupeAnomaliesKeepsHighestConfidence(t *testing.T) {
	in := []models.AnomalyResult{
		{Type: "statistical_outlier", RecordIDs: []string{"b", "a"}, Confidence: 0.6},
		{Type: "statistical_outlier", RecordIDs: []string{"a", "b"}, Confidence: 0.9},
		{Type: "vendor_concentration", RecordIDs: []string{"a", "b"}, Confidence: 0.5},
	}

	out := dedupeAnomalies(in)

	if len(out) != 2 {
		t.Fatalf("got %d anomalies, want 2", len(out))
	}
	if out[0].Type != "statistical_outlier" || out[0].Confidence != 0.9 {
		t.Fatalf("dedupe kept %+v", out[0])
	}
	if out[1].Type != "vendor_concentration" {
		t.Fatalf("second entry = %+v", out[1])
	}
}

func TestRankAnomaliesSeverityThenConfidence(t *testing.T) {
	in := []models.AnomalyResult{
		{Type: "temporal_pattern", Severity: models.SeverityMedium, Confidence: 0.7},
		{Type: "statistical_outlier", Severity: models.SeverityCritical, Confidence: 0.5},
		{Type: "vendor_concentration", Severity: models.SeverityHigh, Confidence: 0.9},
		{Type: "statistical_outlier", Severity: models.SeverityHigh, Confidence: 0.95},
	}

	out := rankAnomalies(in)

	wantOrder := []models.Severity{
		models.SeverityCritical, models.SeverityHigh, models.SeverityHigh, models.SeverityMedium,
	}
	for i, sev := range wantOrder {
		if out[i].Severity != sev {
			t.Fatalf("position %d severity = %s, want %s", i, out[i].Severity, sev)
		}
	}
	if out[1].Confidence != 0.95 {
		t.Fatalf("ties within a severity should order by confidence, got %.2f first", out[1].Confidence)
	}
}
