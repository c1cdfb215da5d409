// Package fetch talks to the spending-records data source consumed by the
// engine. The engine only depends on the Fetcher interface; the HTTP client
// here is one implementation, the static fetcher another.
package fetch

import (
	"context"
	"sort"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// CapabilityFetch is the registry capability name for record fetching.
const CapabilityFetch = "fetch.records"

// Fetcher retrieves normalized spending records matching a query spec.
type Fetcher interface {
	FetchRecords(ctx context.Context, spec models.QuerySpec) ([]models.Record, error)
}

// NewFetchAgent wraps a Fetcher in the uniform agent contract so record
// retrieval dispatches through the registry like any detector step.
func NewFetchAgent(fetcher Fetcher) *agent.Base {
	return agent.New(CapabilityFetch, func(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult {
		records, err := fetcher.FetchRecords(ctx, msg.Query)
		if err != nil {
			return agent.ErrorResult(CapabilityFetch, err)
		}
		return models.AgentResult{
			Status:          models.ResultCompleted,
			Records:         records,
			RecordsExamined: len(records),
			Confidence:      1,
		}
	})
}

// StaticFetcher serves a fixed record set, filtered by the query spec. It
// backs the one-shot CLI mode and tests.
type StaticFetcher struct {
	Records []models.Record
}

// FetchRecords filters the fixed set by organization, category, value floor,
// and date window, returning records in stable date order.
func (s *StaticFetcher) FetchRecords(ctx context.Context, spec models.QuerySpec) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Record, 0, len(s.Records))
	for _, r := range s.Records {
		if spec.Organization != "" && r.Organization != spec.Organization {
			continue
		}
		if len(spec.Categories) > 0 && !containsString(spec.Categories, r.Category) {
			continue
		}
		if spec.MinValue > 0 && r.Value < spec.MinValue {
			continue
		}
		if !spec.Start.IsZero() && r.Date.Before(spec.Start) {
			continue
		}
		if !spec.End.IsZero() && r.Date.After(spec.End) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
