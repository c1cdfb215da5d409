package models

import "sync"

// AgentMessage is the only way work reaches an agent. CorrelationID ties the
// message to exactly one investigation.
type AgentMessage struct {
	ID            string          `json:"id"`
	Sender        string          `json:"sender"`
	Recipient     string          `json:"recipient"`
	Action        string          `json:"action"`
	CorrelationID string          `json:"correlation_id"`
	Records       []Record        `json:"records,omitempty"`
	Query         QuerySpec       `json:"query"`
	Detection     DetectionConfig `json:"detection"`
}

// AgentContext carries per-investigation scratch state. It is created when an
// investigation starts, discarded at completion, and never shared across
// investigations. Steps of the same investigation may touch it concurrently,
// hence the internal lock.
type AgentContext struct {
	InvestigationID string
	TraceID         string

	mu      sync.RWMutex
	scratch map[string]any
}

// NewAgentContext builds an empty context for one investigation.
func NewAgentContext(investigationID, traceID string) *AgentContext {
	return &AgentContext{
		InvestigationID: investigationID,
		TraceID:         traceID,
		scratch:         make(map[string]any),
	}
}

// Get reads a scratch value.
func (c *AgentContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.scratch[key]
	return v, ok
}

// Set stores a scratch value.
func (c *AgentContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scratch[key] = value
}

// ResultStatus enumerates agent processing outcomes.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultError     ResultStatus = "error"
	ResultTimeout   ResultStatus = "timeout"
	ResultSkipped   ResultStatus = "skipped"
)

// AgentResult is the uniform reply produced by every agent invocation. An
// agent body never propagates a panic or error to its caller; failures are
// folded into Status and Err.
type AgentResult struct {
	Status          ResultStatus    `json:"status"`
	Anomalies       []AnomalyResult `json:"anomalies,omitempty"`
	Records         []Record        `json:"records,omitempty"`
	RecordsExamined int             `json:"records_examined"`
	Confidence      float64         `json:"confidence"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Err             error           `json:"-"`
}

// Meta returns the metadata map, allocating it on first use.
func (r *AgentResult) Meta() map[string]any {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	return r.Metadata
}

// Severity captures anomaly impact tiers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparisons; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// AnomalyResult is one flagged irregularity in the spending data.
type AnomalyResult struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Score       float64  `json:"score"`
	RecordIDs   []string `json:"record_ids,omitempty"`
	Explanation string   `json:"explanation"`
}

// Clone returns a deep copy of the anomaly.
func (a AnomalyResult) Clone() AnomalyResult {
	out := a
	if a.RecordIDs != nil {
		out.RecordIDs = append([]string(nil), a.RecordIDs...)
	}
	return out
}
