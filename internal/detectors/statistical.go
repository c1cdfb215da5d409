package detectors

import (
	"context"
	"fmt"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// NewStatisticalAgent builds the grouped z-score outlier detector.
func NewStatisticalAgent() *agent.Base {
	return agent.New(CapabilityStatistical, statisticalHandler)
}

func statisticalHandler(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult {
	cfg := msg.Detection
	if cfg.ZScoreThreshold <= 0 {
		cfg.ZScoreThreshold = 2.5
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 5
	}

	records, deduped := Deduplicate(msg.Records)
	if len(records) == 0 {
		return insufficientResult(0)
	}

	groups := groupBy(records, func(r models.Record) string { return r.Category }, "uncategorized")

	var (
		anomalies []models.AnomalyResult
		skipped   int
		largest   int
	)
	for _, category := range sortedKeys(groups) {
		group := groups[category]
		if len(group) > largest {
			largest = len(group)
		}
		// Small groups are skipped entirely rather than scored, to avoid
		// spurious flags on thin samples.
		if len(group) < cfg.MinSampleSize {
			skipped++
			continue
		}

		values := make([]float64, len(group))
		for i, r := range group {
			values[i] = r.Value
		}
		mean, std := meanStd(values)
		if std == 0 {
			continue
		}

		adq := adequacy(len(group), cfg.MinSampleSize)
		for i, r := range group {
			z := (values[i] - mean) / std
			if absF(z) <= cfg.ZScoreThreshold {
				continue
			}
			anomalies = append(anomalies, models.AnomalyResult{
				Type:       TypeStatisticalOutlier,
				Severity:   severityFromZ(absF(z)),
				Confidence: clamp((0.5+absF(z)/10)*adq, 0, 0.99),
				Score:      absF(z),
				RecordIDs:  []string{r.ID},
				Explanation: fmt.Sprintf(
					"value %.2f deviates %.1f standard deviations from the %s mean %.2f (n=%d)",
					r.Value, absF(z), category, mean, len(group)),
			})
		}
	}

	if skipped == len(groups) {
		res := insufficientResult(len(records))
		res.Meta()[MetaGroupsSkipped] = skipped
		return res
	}

	result := models.AgentResult{
		Status:          models.ResultCompleted,
		Anomalies:       anomalies,
		RecordsExamined: len(records),
		Confidence:      stepConfidence(anomalies, adequacy(largest, cfg.MinSampleSize)),
	}
	if skipped > 0 {
		result.Meta()[MetaGroupsSkipped] = skipped
	}
	if deduped > 0 {
		result.Meta()[MetaRecordsDeduped] = deduped
	}
	return result
}

func severityFromZ(z float64) models.Severity {
	switch {
	case z >= 5:
		return models.SeverityCritical
	case z >= 3.5:
		return models.SeverityHigh
	case z >= 3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
