package intent

import (
	"errors"
	"testing"

	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

func TestClassifyRoutesInvestigativeQueries(t *testing.T) {
	r := NewRouter(0.6, nil)

	cases := []struct {
		query string
		want  models.Intent
	}{
		{"find suspicious anomalies in construction contracts", models.IntentContractAnomalies},
		{"is there vendor concentration or favoritism in IT procurement", models.IntentVendorPatterns},
		{"show seasonal spending spikes and year-end trends", models.IntentSpendingTrends},
		{"export a summary report of last year", models.IntentReportRequest},
		{"hello there", models.IntentGeneralQuery},
	}
	for _, tc := range cases {
		got, err := r.Classify(tc.query)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.query, err)
		}
		if got.Intent != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.query, got.Intent, tc.want)
		}
	}
}

func TestClassifyEmptyQuery(t *testing.T) {
	r := NewRouter(0.6, nil)
	_, err := r.Classify("   ")
	if !errors.Is(err, utils.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestClassifyBelowThresholdFallsBack(t *testing.T) {
	// "contract" alone scores 0.25, under the routing threshold.
	r := NewRouter(0.6, nil)
	got, err := r.Classify("contract list for the mayor's office")
	if err != nil {
		t.Fatal(err)
	}
	if got.Intent != models.IntentGeneralQuery {
		t.Fatalf("intent = %s, want general_query fallback", got.Intent)
	}
}

func TestClassifyKeepsEntitiesOnFallback(t *testing.T) {
	r := NewRouter(0.6, nil)
	got, err := r.Classify("contracts above $2m in 2023")
	if err != nil {
		t.Fatal(err)
	}
	if got.Entities.MinValue != 2_000_000 {
		t.Errorf("MinValue = %v, want 2000000", got.Entities.MinValue)
	}
	if got.Entities.DateRange.Start.Year() != 2023 {
		t.Errorf("date range = %+v, want 2023", got.Entities.DateRange)
	}
}
