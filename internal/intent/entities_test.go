package intent

import (
	"testing"
	"time"
)

func TestExtractEntitiesYearRange(t *testing.T) {
	got := ExtractEntities("irregular payments between 2019 to 2022")
	if got.DateRange.Start.Year() != 2019 || got.DateRange.End.Year() != 2022 {
		t.Fatalf("date range = %v .. %v", got.DateRange.Start, got.DateRange.End)
	}
}

func TestExtractEntitiesLastYears(t *testing.T) {
	got := ExtractEntities("vendor spend over the last 3 years")
	wantStart := time.Now().UTC().AddDate(-3, 0, 0)
	if diff := got.DateRange.Start.Sub(wantStart); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("start = %v, want ~%v", got.DateRange.Start, wantStart)
	}
}

func TestExtractEntitiesOrganizationCode(t *testing.T) {
	got := ExtractEntities("contracts from agency DOT-7 above 100k")
	if got.Organization != "DOT-7" {
		t.Fatalf("organization = %q", got.Organization)
	}
	if got.MinValue != 100_000 {
		t.Fatalf("min value = %v", got.MinValue)
	}
}

func TestExtractEntitiesCategoriesSorted(t *testing.T) {
	got := ExtractEntities("hospital and school construction spending")
	want := []string{"construction", "education", "health"}
	if len(got.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", got.Categories, want)
	}
	for i := range want {
		if got.Categories[i] != want[i] {
			t.Fatalf("categories = %v, want %v", got.Categories, want)
		}
	}
}

func TestExtractEntitiesMoneySuffixes(t *testing.T) {
	cases := []struct {
		query string
		want  float64
	}{
		{"payments above 500k", 500_000},
		{"contracts over $1.5 million", 1_500_000},
		{"spend exceeding 2b", 2_000_000_000},
		{"deals more than 75,000", 75_000},
	}
	for _, tc := range cases {
		got := ExtractEntities(tc.query)
		if got.MinValue != tc.want {
			t.Errorf("ExtractEntities(%q).MinValue = %v, want %v", tc.query, got.MinValue, tc.want)
		}
	}
}

func TestExtractEntitiesNothingToFind(t *testing.T) {
	got := ExtractEntities("what can you do")
	if !got.DateRange.IsZero() || got.Organization != "" || got.MinValue != 0 || len(got.Categories) != 0 {
		t.Fatalf("expected empty entities, got %+v", got)
	}
}
