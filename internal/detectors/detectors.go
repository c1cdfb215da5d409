// Package detectors implements the specialist anomaly-detection agents:
// grouped statistical outliers, vendor concentration, and spectral analysis
// of spending time series.
package detectors

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// Capability ids served by this package.
const (
	CapabilityStatistical   = "detector.statistical"
	CapabilityConcentration = "detector.concentration"
	CapabilitySpectral      = "detector.spectral"
)

// Metadata keys shared by all detectors.
const (
	MetaInsufficientData = "insufficient_data"
	MetaGroupsSkipped    = "groups_skipped"
	MetaRecordsDeduped   = "records_deduped"
)

// Anomaly type names.
const (
	TypeStatisticalOutlier  = "statistical_outlier"
	TypeVendorConcentration = "vendor_concentration"
	TypeTemporalPattern     = "temporal_pattern"
)

// Deduplicate collapses near-duplicate records before scoring so repeated
// feed entries cannot double count. Two records are considered duplicates
// when vendor, category, calendar day, and rounded value all match.
func Deduplicate(records []models.Record) ([]models.Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.Record, 0, len(records))
	dropped := 0
	for _, r := range records {
		key := fingerprint(r)
		if _, ok := seen[key]; ok {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out, dropped
}

func fingerprint(r models.Record) string {
	return strings.ToLower(r.Vendor) + "|" +
		strings.ToLower(r.Category) + "|" +
		r.Date.Format("2006-01-02") + "|" +
		fmt.Sprintf("%.0f", r.Value)
}

// groupBy buckets records by a key function, dropping empty keys into the
// fallback bucket.
func groupBy(records []models.Record, key func(models.Record) string, fallback string) map[string][]models.Record {
	groups := make(map[string][]models.Record)
	for _, r := range records {
		k := key(r)
		if k == "" {
			k = fallback
		}
		groups[k] = append(groups[k], r)
	}
	return groups
}

// sortedKeys returns map keys in a stable order so detector output is
// deterministic for identical input.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// adequacy scales confidence by sample size: full weight at twice the
// minimum sample size, linearly down below that.
func adequacy(n, minSamples int) float64 {
	if minSamples <= 0 {
		minSamples = 1
	}
	a := float64(n) / float64(2*minSamples)
	return clamp(a, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stepConfidence derives the overall result confidence for a detector run
// from its sample adequacy and the anomalies it produced. A clean run over
// adequate data is still a confident result.
func stepConfidence(anoms []models.AnomalyResult, sampleAdequacy float64) float64 {
	if len(anoms) == 0 {
		return clamp(0.85*sampleAdequacy, 0, 0.99)
	}
	sum := 0.0
	for _, a := range anoms {
		sum += a.Confidence
	}
	mean := sum / float64(len(anoms))
	return clamp(0.5*sampleAdequacy+0.5*mean, 0, 0.99)
}

// insufficientResult is the uniform "too little data" reply: zero anomalies,
// an explicit flag, never an error.
func insufficientResult(examined int) models.AgentResult {
	return models.AgentResult{
		Status:          models.ResultCompleted,
		RecordsExamined: examined,
		Confidence:      0.2,
		Metadata:        map[string]any{MetaInsufficientData: true},
	}
}
