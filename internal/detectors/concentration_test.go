package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spendlens/spendlens-engine/internal/models"
)

func vendorRecords(org, vendor string, n int, value float64) []models.Record {
	records := make([]models.Record, n)
	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	for i := range records {
		records[i] = models.Record{
			ID:           fmt.Sprintf("%s-%s-%d", org, vendor, i),
			Organization: org,
			Vendor:       vendor,
			Category:     "it_services",
			Value:        value + float64(i),
			Date:         start.AddDate(0, 0, i*7),
		}
	}
	return records
}

func TestConcentrationFlagsDominantVendor(t *testing.T) {
	records := vendorRecords("HHS", "MegaCorp", 9, 90_000)
	records = append(records, vendorRecords("HHS", "SmallCo", 1, 45_000)...)
	records = append(records, vendorRecords("HHS", "OtherCo", 1, 45_000)...)

	a := NewConcentrationAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   records,
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	require.Len(t, res.Anomalies, 1)

	anom := res.Anomalies[0]
	require.Equal(t, TypeVendorConcentration, anom.Type)
	// MegaCorp holds ~90% of spend: HHI ~= 0.81 + two tiny squares.
	require.InDelta(t, 0.815, anom.Score, 0.01)
	require.Equal(t, models.SeverityCritical, anom.Severity)
	require.Len(t, anom.RecordIDs, 9)
	require.Contains(t, anom.Explanation, "MegaCorp")
}

func TestConcentrationBalancedMarketIsClean(t *testing.T) {
	var records []models.Record
	for i := 0; i < 6; i++ {
		records = append(records, vendorRecords("DOE", fmt.Sprintf("vendor-%d", i), 3, 10_000)...)
	}

	a := NewConcentrationAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   records,
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	require.Empty(t, res.Anomalies)
	require.Greater(t, res.Confidence, 0.5)
}

func TestConcentrationSingleVendorIsInsufficient(t *testing.T) {
	a := NewConcentrationAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   vendorRecords("DOT", "OnlyCo", 8, 20_000),
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, models.ResultCompleted, res.Status)
	require.Empty(t, res.Anomalies)
	require.Equal(t, true, res.Metadata[MetaInsufficientData])
}

func TestConcentrationThinSampleIsInsufficient(t *testing.T) {
	records := append(vendorRecords("DOT", "A", 2, 10_000), vendorRecords("DOT", "B", 2, 10_000)...)

	a := NewConcentrationAgent()
	res := a.Process(context.Background(), models.AgentMessage{
		Records:   records,
		Detection: models.DefaultDetectionConfig(),
	}, detectorContext())

	require.Equal(t, true, res.Metadata[MetaInsufficientData])
	require.Equal(t, 4, res.RecordsExamined)
}
