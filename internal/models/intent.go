package models

// Intent is one of a closed set of query classifications.
type Intent string

const (
	IntentContractAnomalies Intent = "contract_anomalies"
	IntentVendorPatterns    Intent = "vendor_patterns"
	IntentSpendingTrends    Intent = "spending_trends"
	IntentReportRequest     Intent = "report_request"
	IntentGeneralQuery      Intent = "general_query"
)

// Investigative reports whether the intent triggers a full investigation
// rather than a conversational or reporting path.
func (i Intent) Investigative() bool {
	switch i {
	case IntentContractAnomalies, IntentVendorPatterns, IntentSpendingTrends:
		return true
	}
	return false
}

// Priority breaks ties between competing intents: investigation intents
// outrank reports, which outrank general queries.
func (i Intent) Priority() int {
	switch i {
	case IntentContractAnomalies:
		return 5
	case IntentVendorPatterns:
		return 4
	case IntentSpendingTrends:
		return 3
	case IntentReportRequest:
		return 2
	case IntentGeneralQuery:
		return 1
	default:
		return 0
	}
}

// Classification is the intent router's verdict on a free-text query.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities"`
}

// Entities are structured values extracted from a free-text query.
type Entities struct {
	DateRange    TimeRange `json:"date_range"`
	Organization string    `json:"organization,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	MinValue     float64   `json:"min_value,omitempty"`
}
