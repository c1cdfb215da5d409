// Package intent classifies free-text spending queries into a closed set of
// intents and extracts the structured entities the planner needs.
package intent

import (
	"log/slog"
	"strings"

	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// Router scores queries against keyword dictionaries per intent. When the
// best score clears the confidence threshold the query routes straight to
// the matching investigation path; otherwise it falls back to the
// conversational default.
type Router struct {
	threshold float64
	logger    *slog.Logger
}

// NewRouter builds a Router with the given routing threshold (0.6 default).
func NewRouter(threshold float64, logger *slog.Logger) *Router {
	if threshold <= 0 {
		threshold = 0.6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{threshold: threshold, logger: logger}
}

type keyword struct {
	term   string
	weight float64
}

// intentKeywords maps each classifiable intent to weighted cue terms. Terms
// are matched as lowercase substrings so plural and inflected forms hit too.
var intentKeywords = map[models.Intent][]keyword{
	models.IntentContractAnomalies: {
		{term: "anomal", weight: 0.45},
		{term: "suspicious", weight: 0.4},
		{term: "irregular", weight: 0.4},
		{term: "fraud", weight: 0.4},
		{term: "overpriced", weight: 0.35},
		{term: "outlier", weight: 0.35},
		{term: "investigate", weight: 0.3},
		{term: "contract", weight: 0.25},
	},
	models.IntentVendorPatterns: {
		{term: "concentration", weight: 0.45},
		{term: "monopol", weight: 0.4},
		{term: "favoritism", weight: 0.4},
		{term: "single supplier", weight: 0.4},
		{term: "vendor", weight: 0.3},
		{term: "supplier", weight: 0.3},
	},
	models.IntentSpendingTrends: {
		{term: "seasonal", weight: 0.4},
		{term: "cycle", weight: 0.35},
		{term: "spike", weight: 0.35},
		{term: "trend", weight: 0.35},
		{term: "over time", weight: 0.3},
		{term: "year-end", weight: 0.3},
	},
	models.IntentReportRequest: {
		{term: "report", weight: 0.45},
		{term: "summar", weight: 0.4},
		{term: "export", weight: 0.35},
	},
}

// Classify scores the query against every intent. It returns ErrInvalidQuery
// only when the text is empty after trimming; any other text can at least be
// answered conversationally.
func (r *Router) Classify(query string) (models.Classification, error) {
	text := strings.ToLower(strings.TrimSpace(query))
	if text == "" {
		return models.Classification{}, utils.ErrInvalidQuery
	}

	best := models.Classification{Intent: models.IntentGeneralQuery, Confidence: 0.3}
	for intent, keywords := range intentKeywords {
		score := 0.0
		for _, kw := range keywords {
			if strings.Contains(text, kw.term) {
				score += kw.weight
			}
		}
		if score == 0 {
			continue
		}
		confidence := clamp(score, 0, 0.95)
		if confidence > best.Confidence ||
			(confidence == best.Confidence && intent.Priority() > best.Intent.Priority()) {
			best = models.Classification{Intent: intent, Confidence: confidence}
		}
	}

	// Below the routing threshold the query falls back to the
	// conversational default, entities preserved.
	if best.Confidence < r.threshold {
		best.Intent = models.IntentGeneralQuery
	}

	best.Entities = ExtractEntities(query)
	r.logger.Debug("query classified",
		slog.String("intent", string(best.Intent)),
		slog.Float64("confidence", best.Confidence))
	return best, nil
}

// Threshold returns the configured routing threshold.
func (r *Router) Threshold() float64 { return r.threshold }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
