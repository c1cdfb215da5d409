package models

import "time"

// InvestigationPlan is an ordered set of capability invocations with declared
// dependencies. Steps without mutual dependencies run concurrently.
type InvestigationPlan struct {
	Objective     string        `json:"objective"`
	Steps         []PlanStep    `json:"steps"`
	EstimatedTime time.Duration `json:"estimated_time"`
}

// PlanStep is one capability invocation inside a plan.
type PlanStep struct {
	ID         string          `json:"id"`
	Capability string          `json:"capability"`
	Action     string          `json:"action"`
	DependsOn  []string        `json:"depends_on,omitempty"`
	Timeout    time.Duration   `json:"timeout"`
	Query      QuerySpec       `json:"query"`
	Detection  DetectionConfig `json:"detection"`
}

// Clone returns a deep copy of the plan.
func (p *InvestigationPlan) Clone() InvestigationPlan {
	out := *p
	out.Steps = make([]PlanStep, len(p.Steps))
	for i, s := range p.Steps {
		out.Steps[i] = s
		if s.DependsOn != nil {
			out.Steps[i].DependsOn = append([]string(nil), s.DependsOn...)
		}
		if s.Query.Categories != nil {
			out.Steps[i].Query.Categories = append([]string(nil), s.Query.Categories...)
		}
		if s.Detection.SuspiciousPeriods != nil {
			out.Steps[i].Detection.SuspiciousPeriods = append([]float64(nil), s.Detection.SuspiciousPeriods...)
		}
	}
	return out
}

// Step returns the step with the given id, or nil.
func (p *InvestigationPlan) Step(id string) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// DetectionConfig tunes the detector algorithms for one step.
type DetectionConfig struct {
	// Statistical outliers.
	ZScoreThreshold float64 `json:"zscore_threshold" yaml:"zscore_threshold"`
	MinSampleSize   int     `json:"min_sample_size" yaml:"min_sample_size"`

	// Vendor concentration.
	HHICeiling       float64 `json:"hhi_ceiling" yaml:"hhi_ceiling"`
	DominanceCeiling float64 `json:"dominance_ceiling" yaml:"dominance_ceiling"`

	// Spectral analysis.
	PeakSigma         float64   `json:"peak_sigma" yaml:"peak_sigma"`
	StrictPeakSigma   float64   `json:"strict_peak_sigma" yaml:"strict_peak_sigma"`
	SuspiciousPeriods []float64 `json:"suspicious_periods" yaml:"suspicious_periods"`
	PeriodTolerance   float64   `json:"period_tolerance" yaml:"period_tolerance"`
}

// DefaultDetectionConfig returns the stock detector tuning.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		ZScoreThreshold:   2.5,
		MinSampleSize:     5,
		HHICeiling:        0.25,
		DominanceCeiling:  0.25,
		PeakSigma:         2.0,
		StrictPeakSigma:   3.5,
		SuspiciousPeriods: []float64{12, 3, 48},
		PeriodTolerance:   0.1,
	}
}

// Widen relaxes thresholds for a reflection pass. The mutation is pure: the
// receiver is unchanged and the widened copy is returned.
func (c DetectionConfig) Widen() DetectionConfig {
	out := c
	out.ZScoreThreshold = c.ZScoreThreshold * 0.85
	if out.ZScoreThreshold < 1.5 {
		out.ZScoreThreshold = 1.5
	}
	out.HHICeiling = c.HHICeiling * 0.85
	out.DominanceCeiling = c.DominanceCeiling * 0.85
	out.PeakSigma = c.PeakSigma * 0.9
	if out.MinSampleSize > 3 {
		out.MinSampleSize = c.MinSampleSize - 1
	}
	out.SuspiciousPeriods = append([]float64(nil), c.SuspiciousPeriods...)
	return out
}
