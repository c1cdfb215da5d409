package orchestrator

import (
	"fmt"
	"time"

	"github.com/spendlens/spendlens-engine/internal/detectors"
	"github.com/spendlens/spendlens-engine/internal/fetch"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// Step ids used by the planner.
const (
	stepFetch         = "fetch-records"
	stepStatistical   = "detect-statistical"
	stepConcentration = "detect-concentration"
	stepSpectral      = "detect-spectral"
)

// defaultLookbackYears is the analysis window applied when the query names
// no dates.
const defaultLookbackYears = 2

// buildPlan turns a classified query into a DAG of capability invocations:
// one fetch step feeding a fan-out of detector steps chosen by intent.
func buildPlan(c models.Classification, detection models.DetectionConfig, stepTimeout time.Duration, profiles *ProfileEngine) *models.InvestigationPlan {
	spec := querySpec(c.Entities)
	detection = profiles.Apply(detection, spec)

	capabilities := detectorsForIntent(c.Intent)

	steps := make([]models.PlanStep, 0, len(capabilities)+1)
	steps = append(steps, models.PlanStep{
		ID:         stepFetch,
		Capability: fetch.CapabilityFetch,
		Action:     "fetch",
		Timeout:    stepTimeout,
		Query:      spec,
	})
	for _, capability := range capabilities {
		steps = append(steps, models.PlanStep{
			ID:         stepIDFor(capability),
			Capability: capability,
			Action:     "detect",
			DependsOn:  []string{stepFetch},
			Timeout:    stepTimeout,
			Query:      spec,
			Detection:  detection,
		})
	}

	return &models.InvestigationPlan{
		Objective:     objectiveFor(c.Intent),
		Steps:         steps,
		EstimatedTime: 2 * stepTimeout, // fetch, then detectors in parallel
	}
}

// detectorsForIntent selects the dispatch path: investigation intents fan
// out to their specialists, everything else gets a basic overview scan.
func detectorsForIntent(intent models.Intent) []string {
	switch intent {
	case models.IntentContractAnomalies:
		return []string{detectors.CapabilityStatistical, detectors.CapabilityConcentration, detectors.CapabilitySpectral}
	case models.IntentVendorPatterns:
		return []string{detectors.CapabilityConcentration, detectors.CapabilityStatistical}
	case models.IntentSpendingTrends:
		return []string{detectors.CapabilitySpectral, detectors.CapabilityStatistical}
	default:
		return []string{detectors.CapabilityStatistical}
	}
}

func stepIDFor(capability string) string {
	switch capability {
	case detectors.CapabilityStatistical:
		return stepStatistical
	case detectors.CapabilityConcentration:
		return stepConcentration
	case detectors.CapabilitySpectral:
		return stepSpectral
	default:
		return "step-" + capability
	}
}

func objectiveFor(intent models.Intent) string {
	switch intent {
	case models.IntentContractAnomalies:
		return "identify irregular contract spending"
	case models.IntentVendorPatterns:
		return "assess vendor concentration"
	case models.IntentSpendingTrends:
		return "analyze temporal spending patterns"
	case models.IntentReportRequest:
		return "summarize spending for reporting"
	default:
		return "general spending overview"
	}
}

func querySpec(e models.Entities) models.QuerySpec {
	spec := models.QuerySpec{
		Organization: e.Organization,
		Categories:   append([]string(nil), e.Categories...),
		MinValue:     e.MinValue,
		Start:        e.DateRange.Start,
		End:          e.DateRange.End,
	}
	if e.DateRange.IsZero() {
		now := time.Now().UTC()
		spec.Start = now.AddDate(-defaultLookbackYears, 0, 0)
		spec.End = now
	}
	return spec
}

// revisePlan widens the search for a reflection pass: the date range is
// extended, detector thresholds are relaxed, and any specialist missing
// from the original fan-out is added.
func revisePlan(plan *models.InvestigationPlan, pass int) *models.InvestigationPlan {
	revised := plan.Clone()
	revised.Objective = fmt.Sprintf("%s (reflection pass %d)", plan.Objective, pass)

	present := make(map[string]bool, len(revised.Steps))
	var fetchStep *models.PlanStep
	for i := range revised.Steps {
		step := &revised.Steps[i]
		present[step.Capability] = true
		if step.ID == stepFetch {
			fetchStep = step
			step.Query.Start = step.Query.Start.AddDate(-1, 0, 0)
			continue
		}
		step.Detection = step.Detection.Widen()
		step.Query.Start = step.Query.Start.AddDate(-1, 0, 0)
	}

	if fetchStep != nil {
		var detection models.DetectionConfig
		var timeout time.Duration
		for _, step := range revised.Steps {
			if step.ID != stepFetch {
				detection = step.Detection
				timeout = step.Timeout
				break
			}
		}
		for _, capability := range []string{detectors.CapabilityStatistical, detectors.CapabilityConcentration, detectors.CapabilitySpectral} {
			if present[capability] {
				continue
			}
			revised.Steps = append(revised.Steps, models.PlanStep{
				ID:         stepIDFor(capability),
				Capability: capability,
				Action:     "detect",
				DependsOn:  []string{stepFetch},
				Timeout:    timeout,
				Query:      fetchStep.Query,
				Detection:  detection,
			})
		}
	}
	return &revised
}
