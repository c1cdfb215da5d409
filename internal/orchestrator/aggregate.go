package orchestrator

import (
	"sort"
	"strings"

	"github.com/spendlens/spendlens-engine/internal/fetch"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// aggregate is the merged view of one dispatch round.
type aggregate struct {
	anomalies       []models.AnomalyResult
	confidence      float64
	recordsAnalyzed int
	detectorSteps   int
	failedSteps     int
	fetchFailed     bool
}

// aggregateOutcomes merges detector step results: anomalies are
// de-duplicated across steps and ranked, and the overall confidence is the
// weighted mean of the successful detectors' step confidences, each
// weighted by the share of records that detector examined. Failed steps
// contribute nothing, so a round with one surviving detector reports that
// detector's confidence rather than averaging in zeros.
func aggregateOutcomes(outcomes map[string]*stepOutcome) aggregate {
	var agg aggregate
	var weightedSum, weightTotal float64

	for _, out := range outcomes {
		if out.step.Capability == fetch.CapabilityFetch {
			if out.succeeded() {
				agg.recordsAnalyzed += len(out.result.Records)
			} else {
				agg.fetchFailed = true
				agg.failedSteps++
			}
			continue
		}
		agg.detectorSteps++
		if !out.succeeded() {
			agg.failedSteps++
			continue
		}
		weight := float64(out.result.RecordsExamined)
		weightedSum += out.result.Confidence * weight
		weightTotal += weight
		agg.anomalies = append(agg.anomalies, out.result.Anomalies...)
	}

	if weightTotal > 0 {
		agg.confidence = weightedSum / weightTotal
	}
	if agg.fetchFailed {
		agg.confidence = 0
	}
	agg.anomalies = rankAnomalies(dedupeAnomalies(agg.anomalies))
	return agg
}

// dedupeAnomalies drops repeat detections of the same type over the same
// record set, keeping the highest-confidence one.
func dedupeAnomalies(anomalies []models.AnomalyResult) []models.AnomalyResult {
	best := make(map[string]models.AnomalyResult, len(anomalies))
	order := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		key := anomalyKey(a)
		prev, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = a
			continue
		}
		if a.Confidence > prev.Confidence {
			best[key] = a
		}
	}
	out := make([]models.AnomalyResult, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func anomalyKey(a models.AnomalyResult) string {
	ids := append([]string(nil), a.RecordIDs...)
	sort.Strings(ids)
	return a.Type + "|" + strings.Join(ids, ",")
}

// rankAnomalies orders findings by severity, then confidence, then type
// for a stable report.
func rankAnomalies(anomalies []models.AnomalyResult) []models.AnomalyResult {
	sort.SliceStable(anomalies, func(i, j int) bool {
		if anomalies[i].Severity != anomalies[j].Severity {
			return anomalies[i].Severity.AtLeast(anomalies[j].Severity)
		}
		if anomalies[i].Confidence != anomalies[j].Confidence {
			return anomalies[i].Confidence > anomalies[j].Confidence
		}
		return anomalies[i].Type < anomalies[j].Type
	})
	return anomalies
}
