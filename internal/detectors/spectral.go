package detectors

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// minSpectralMonths is the shortest series worth transforming: two full
// annual cycles.
const minSpectralMonths = 24

// NewSpectralAgent builds the temporal/spectral detector: records are
// bucketed into a monthly series, detrended, windowed, transformed, and the
// power spectrum scanned for periodic spending cycles.
func NewSpectralAgent() *agent.Base {
	return agent.New(CapabilitySpectral, spectralHandler)
}

func spectralHandler(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult {
	cfg := msg.Detection
	if cfg.PeakSigma <= 0 {
		cfg.PeakSigma = 2.0
	}
	if cfg.StrictPeakSigma <= 0 {
		cfg.StrictPeakSigma = 3.5
	}
	if cfg.PeriodTolerance <= 0 {
		cfg.PeriodTolerance = 0.1
	}
	if len(cfg.SuspiciousPeriods) == 0 {
		cfg.SuspiciousPeriods = []float64{12, 3, 48}
	}

	records, deduped := Deduplicate(msg.Records)
	series, buckets := monthlySeries(records)
	if len(series) < minSpectralMonths {
		return insufficientResult(len(records))
	}

	detrended := detrend(series)
	windowed := hannWindow(detrended)
	psd := powerSpectrum(windowed)

	peaks := findPeaks(psd, len(series), cfg)

	var anomalies []models.AnomalyResult
	for _, p := range peaks {
		anomalies = append(anomalies, models.AnomalyResult{
			Type:       TypeTemporalPattern,
			Severity:   severityFromSignificance(p.significance),
			Confidence: clamp((0.5+p.significance/20)*adequacy(len(series), minSpectralMonths), 0, 0.99),
			Score:      p.significance,
			RecordIDs:  peakRecordIDs(series, buckets),
			Explanation: fmt.Sprintf(
				"recurring spending cycle with period %.1f months (significance %.1f sigma over %d months)",
				p.period, p.significance, len(series)),
		})
	}

	result := models.AgentResult{
		Status:          models.ResultCompleted,
		Anomalies:       anomalies,
		RecordsExamined: len(records),
		Confidence:      stepConfidence(anomalies, adequacy(len(series), minSpectralMonths)),
	}
	if deduped > 0 {
		result.Meta()[MetaRecordsDeduped] = deduped
	}
	return result
}

// monthlySeries sums record values into a gap-free monthly series spanning
// the observed date range. The second return maps series index to the ids of
// records in that bucket.
func monthlySeries(records []models.Record) ([]float64, [][]string) {
	if len(records) == 0 {
		return nil, nil
	}

	first, last := records[0].Date, records[0].Date
	for _, r := range records[1:] {
		if r.Date.Before(first) {
			first = r.Date
		}
		if r.Date.After(last) {
			last = r.Date
		}
	}

	start := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	n := monthsBetween(start, end) + 1

	series := make([]float64, n)
	ids := make([][]string, n)
	for _, r := range records {
		bucket := time.Date(r.Date.Year(), r.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		idx := monthsBetween(start, bucket)
		series[idx] += r.Value
		ids[idx] = append(ids[idx], r.ID)
	}
	return series, ids
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// detrend removes the least-squares linear trend from the series.
func detrend(series []float64) []float64 {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	slope := 0.0
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / n

	out := make([]float64, len(series))
	for i, y := range series {
		out[i] = y - (intercept + slope*float64(i))
	}
	return out
}

// hannWindow tapers the series edges to limit spectral leakage.
func hannWindow(series []float64) []float64 {
	n := len(series)
	out := make([]float64, n)
	for i, v := range series {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		out[i] = v * w
	}
	return out
}

// powerSpectrum computes the one-sided power spectral density via a direct
// discrete Fourier transform. Inputs are small (a few hundred monthly
// buckets at most), so the O(n^2) transform stays cheap and fully
// deterministic.
func powerSpectrum(series []float64) []float64 {
	n := len(series)
	half := n / 2
	psd := make([]float64, half+1)
	for k := 1; k <= half; k++ {
		var re, im float64
		for i, v := range series {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		psd[k] = (re*re + im*im) / float64(n)
	}
	return psd
}

type spectralPeak struct {
	bin          int
	period       float64
	significance float64
}

// findPeaks scans the spectrum for bins whose power exceeds mean + k*stddev
// of the remaining bins (the candidate is excluded so a strong peak cannot
// suppress itself). A peak is only admitted when its period matches a known
// suspicious cycle, or its significance clears the stricter threshold: raw
// spectral peaks alone are not sufficient evidence.
func findPeaks(psd []float64, seriesLen int, cfg models.DetectionConfig) []spectralPeak {
	n := len(psd) - 1 // bins 1..n are populated
	if n < 2 {
		return nil
	}

	var peaks []spectralPeak
	for k := 1; k <= n; k++ {
		mean, std := leaveOneOutStats(psd[1:], k-1)
		if std == 0 {
			continue
		}
		significance := (psd[k] - mean) / std
		if significance < cfg.PeakSigma {
			continue
		}

		period := float64(seriesLen) / float64(k)
		if !matchesSuspiciousPeriod(period, cfg) && significance < cfg.StrictPeakSigma {
			continue
		}
		peaks = append(peaks, spectralPeak{bin: k, period: period, significance: significance})
	}

	sort.Slice(peaks, func(i, j int) bool { return peaks[i].significance > peaks[j].significance })
	return peaks
}

func leaveOneOutStats(values []float64, exclude int) (mean, std float64) {
	n := 0
	for i, v := range values {
		if i == exclude {
			continue
		}
		mean += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	mean /= float64(n)

	variance := 0.0
	for i, v := range values {
		if i == exclude {
			continue
		}
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}

func matchesSuspiciousPeriod(period float64, cfg models.DetectionConfig) bool {
	for _, suspicious := range cfg.SuspiciousPeriods {
		if suspicious <= 0 {
			continue
		}
		if math.Abs(period-suspicious)/suspicious <= cfg.PeriodTolerance {
			return true
		}
	}
	return false
}

// peakRecordIDs returns the ids of records in the highest-value bucket, the
// concrete spending the cycle points at.
func peakRecordIDs(series []float64, buckets [][]string) []string {
	best, bestValue := -1, math.Inf(-1)
	for i, v := range series {
		if v > bestValue {
			best, bestValue = i, v
		}
	}
	if best < 0 {
		return nil
	}
	return append([]string(nil), buckets[best]...)
}

func severityFromSignificance(sig float64) models.Severity {
	switch {
	case sig >= 6:
		return models.SeverityCritical
	case sig >= 4:
		return models.SeverityHigh
	case sig >= 3:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
