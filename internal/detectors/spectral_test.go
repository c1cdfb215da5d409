package detectors

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// monthlyRecords produces one record per month with the given values.
func monthlyRecords(values []float64) []models.Record {
	start := time.Date(2022, time.January, 15, 0, 0, 0, 0, time.UTC)
	records := make([]models.Record, len(values))
	for i, v := range values {
		records[i] = models.Record{
			ID:           fmt.Sprintf("m-%02d", i),
			Organization: "DOT",
			Vendor:       "CyclicCo",
			Category:     "construction",
			Value:        v,
			Date:         start.AddDate(0, i, 0),
		}
	}
	return records
}

func TestSpectralFindsAnnualCycle(t *testing.T) {
	values := make([]float64, 36)
	for i := range values {
		values[i] = 100_000 + 40_000*math.Sin(2*math.Pi*float64(i)/12)
	}

	a := NewSpectralAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   monthlyRecords(values),
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	require.NotEmpty(t, res.Anomalies)

	anom := res.Anomalies[0]
	require.Equal(t, TypeTemporalPattern, anom.Type)
	require.Contains(t, anom.Explanation, "period 12.0 months")
	require.GreaterOrEqual(t, anom.Score, 2.0)
	require.NotEmpty(t, anom.RecordIDs)
}

func TestSpectralFlatSeriesIsClean(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 50_000 + float64(i%2) // negligible jitter
	}

	a := NewSpectralAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   monthlyRecords(values),
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	for _, anom := range res.Anomalies {
		// Only the Nyquist alternation could ever show up here, and its
		// period matches no suspicious cycle.
		require.NotContains(t, anom.Explanation, "period 12.0")
	}
}

func TestSpectralShortSeriesIsInsufficient(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		values[i] = 10_000 * float64(i+1)
	}

	a := NewSpectralAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   monthlyRecords(values),
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	require.Empty(t, res.Anomalies)
	require.Equal(t, true, res.Metadata[MetaInsufficientData])
}

func TestMonthlySeriesFillsGaps(t *testing.T) {
	records := []models.Record{
		{ID: "a", Value: 100, Date: time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Value: 200, Date: time.Date(2024, time.April, 20, 0, 0, 0, 0, time.UTC)},
		{ID: "c", Value: 50, Date: time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)},
	}

	series, ids := monthlySeries(records)
	require.Equal(t, []float64{100, 0, 0, 250}, series)
	require.Equal(t, []string{"a"}, ids[0])
	require.Empty(t, ids[1])
	require.ElementsMatch(t, []string{"b", "c"}, ids[3])
}

func TestFindPeaksRequiresSuspiciousPeriodOrStrictSigma(t *testing.T) {
	cfg := models.DefaultDetectionConfig()

	// 18 usable bins for a 36-month series with a noisy floor; bin 3 is
	// the annual cycle.
	psd := make([]float64, 19)
	for k := 1; k < len(psd); k++ {
		psd[k] = 1 + 0.2*float64(k%5)
	}
	psd[3] = 40
	peaks := findPeaks(psd, 36, cfg)
	require.Len(t, peaks, 1)
	require.InDelta(t, 12.0, peaks[0].period, 0.01)

	// The same power at bin 5 (period 7.2 months) matches nothing
	// suspicious and only survives at the strict threshold.
	psd[3] = 1 + 0.2*3
	psd[5] = 40
	peaks = findPeaks(psd, 36, cfg)
	require.Len(t, peaks, 1)
	require.InDelta(t, 7.2, peaks[0].period, 0.01)
	require.GreaterOrEqual(t, peaks[0].significance, cfg.StrictPeakSigma)

	// Raise the strict bar out of reach and it must vanish.
	strict := cfg
	strict.StrictPeakSigma = 1000
	peaks = findPeaks(psd, 36, strict)
	require.Empty(t, peaks)
}

func TestMatchesSuspiciousPeriodTolerance(t *testing.T) {
	cfg := models.DefaultDetectionConfig()
	require.True(t, matchesSuspiciousPeriod(12.0, cfg))
	require.True(t, matchesSuspiciousPeriod(11.0, cfg))  // within 10%
	require.False(t, matchesSuspiciousPeriod(10.0, cfg)) // outside 10%
	require.True(t, matchesSuspiciousPeriod(3.1, cfg))
	require.False(t, matchesSuspiciousPeriod(7.2, cfg))
}

func TestDetrendRemovesLinearTrend(t *testing.T) {
	series := make([]float64, 24)
	for i := range series {
		series[i] = 5_000 + 1_250*float64(i)
	}
	out := detrend(series)
	for i, v := range out {
		require.InDelta(t, 0, v, 1e-6, "index %d", i)
	}
}
