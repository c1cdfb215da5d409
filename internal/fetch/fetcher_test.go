package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/spendlens/spendlens-engine/internal/models"
)

func staticSet() *StaticFetcher {
	return &StaticFetcher{Records: []models.Record{
		{ID: "c", Organization: "DOT", Category: "construction", Value: 90_000, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a", Organization: "DOT", Category: "construction", Value: 50_000, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Organization: "HHS", Category: "health", Value: 70_000, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "d", Organization: "DOT", Category: "construction", Value: 10_000, Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
	}}
}

func TestStaticFetcherFilters(t *testing.T) {
	got, err := staticSet().FetchRecords(context.Background(), models.QuerySpec{
		Organization: "DOT",
		Categories:   []string{"construction"},
		MinValue:     20_000,
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records: %+v", len(got), got)
	}
	// Stable date order.
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("order = %s,%s; want a,c", got[0].ID, got[1].ID)
	}
}

func TestFetchAgentWrapsFetcher(t *testing.T) {
	a := NewFetchAgent(staticSet())
	if a.Capability() != CapabilityFetch {
		t.Fatalf("capability = %s", a.Capability())
	}

	res := a.Process(context.Background(), models.AgentMessage{
		Query: models.QuerySpec{Organization: "HHS"},
	}, models.NewAgentContext("inv-1", "trace-1"))

	if res.Status != models.ResultCompleted {
		t.Fatalf("status = %s", res.Status)
	}
	if res.RecordsExamined != 1 || len(res.Records) != 1 || res.Records[0].ID != "b" {
		t.Fatalf("result = %+v", res)
	}
	if res.Confidence != 1 {
		t.Fatalf("confidence = %v, want 1", res.Confidence)
	}
}
