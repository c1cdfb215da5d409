package models

import "time"

// InvestigationStatus enumerates lifecycle states of an investigation.
type InvestigationStatus string

const (
	StatusReceived    InvestigationStatus = "received"
	StatusPlanning    InvestigationStatus = "planning"
	StatusDispatching InvestigationStatus = "dispatching"
	StatusAggregating InvestigationStatus = "aggregating"
	StatusReflecting  InvestigationStatus = "reflecting"
	StatusCompleted   InvestigationStatus = "completed"
	StatusPartial     InvestigationStatus = "partial"
	StatusFailed      InvestigationStatus = "failed"
	StatusCancelled   InvestigationStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s InvestigationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// statusOrder encodes the forward-only progression of the state machine.
var statusOrder = map[InvestigationStatus]int{
	StatusReceived:    0,
	StatusPlanning:    1,
	StatusDispatching: 2,
	StatusAggregating: 3,
	StatusReflecting:  4,
	StatusCompleted:   5,
	StatusPartial:     5,
	StatusFailed:      5,
	StatusCancelled:   5,
}

// CanTransition reports whether moving from one status to another is legal.
// Transitions only move forward; FAILED and CANCELLED are reachable from any
// non-terminal state, the other terminals only from REFLECTING.
func CanTransition(from, to InvestigationStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusFailed, StatusCancelled:
		return true
	case StatusCompleted, StatusPartial:
		return from == StatusReflecting
	default:
		return statusOrder[to] == statusOrder[from]+1
	}
}

// Investigation is the durable lifecycle record for one analysis run. It is
// exclusively mutated by the orchestrator while running and immutable once a
// terminal status is reached.
type Investigation struct {
	ID                   string                 `json:"id"`
	Query                string                 `json:"query"`
	Intent               Intent                 `json:"intent"`
	Status               InvestigationStatus    `json:"status"`
	Plan                 *InvestigationPlan     `json:"plan,omitempty"`
	Results              []AnomalyResult        `json:"results,omitempty"`
	Confidence           float64                `json:"confidence"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          *time.Time             `json:"completed_at,omitempty"`
	TotalRecordsAnalyzed int                    `json:"total_records_analyzed"`
	ProcessingTime       time.Duration          `json:"processing_time"`
	ReflectionApplied    bool                   `json:"reflection_applied"`
	Attempts             int                    `json:"attempts"`
	TraceID              string                 `json:"trace_id"`
	Error                string                 `json:"error,omitempty"`
	Metadata             map[string]string      `json:"metadata,omitempty"`
}

// Clone returns a deep copy safe to hand to callers while the orchestrator
// keeps mutating the original.
func (inv *Investigation) Clone() Investigation {
	out := *inv
	if inv.CompletedAt != nil {
		t := *inv.CompletedAt
		out.CompletedAt = &t
	}
	if inv.Plan != nil {
		plan := inv.Plan.Clone()
		out.Plan = &plan
	}
	if inv.Results != nil {
		out.Results = make([]AnomalyResult, len(inv.Results))
		for i, r := range inv.Results {
			out.Results[i] = r.Clone()
		}
	}
	if inv.Metadata != nil {
		out.Metadata = make(map[string]string, len(inv.Metadata))
		for k, v := range inv.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Finish stamps the completion time exactly once and records processing time.
func (inv *Investigation) Finish(at time.Time) {
	if inv.CompletedAt != nil {
		return
	}
	t := at
	inv.CompletedAt = &t
	inv.ProcessingTime = t.Sub(inv.StartedAt)
}
