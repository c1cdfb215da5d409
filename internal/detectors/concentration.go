package detectors

import (
	"context"
	"fmt"
	"sort"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/models"
)

// NewConcentrationAgent builds the vendor-concentration detector. It derives
// a Herfindahl-Hirschman index from vendor shares of total value within each
// organization and flags groups dominated by too few vendors.
func NewConcentrationAgent() *agent.Base {
	return agent.New(CapabilityConcentration, concentrationHandler)
}

func concentrationHandler(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult {
	cfg := msg.Detection
	if cfg.HHICeiling <= 0 {
		cfg.HHICeiling = 0.25
	}
	if cfg.DominanceCeiling <= 0 {
		cfg.DominanceCeiling = 0.25
	}
	if cfg.MinSampleSize <= 0 {
		cfg.MinSampleSize = 5
	}

	records, deduped := Deduplicate(msg.Records)
	if len(records) < cfg.MinSampleSize {
		return insufficientResult(len(records))
	}

	groups := groupBy(records, func(r models.Record) string { return r.Organization }, "unknown-org")

	var (
		anomalies []models.AnomalyResult
		skipped   int
	)
	for _, org := range sortedKeys(groups) {
		group := groups[org]
		shares := vendorShares(group)
		// Concentration over a single vendor or a thin sample says nothing.
		if len(shares) < 2 || len(group) < cfg.MinSampleSize {
			skipped++
			continue
		}

		hhi := 0.0
		top := shares[0]
		for _, s := range shares {
			hhi += s.share * s.share
		}

		if hhi <= cfg.HHICeiling && top.share <= cfg.DominanceCeiling {
			continue
		}

		adq := adequacy(len(group), cfg.MinSampleSize)
		anomalies = append(anomalies, models.AnomalyResult{
			Type:       TypeVendorConcentration,
			Severity:   severityFromHHI(hhi),
			Confidence: clamp((0.5+top.share/2)*adq, 0, 0.99),
			Score:      hhi,
			RecordIDs:  top.recordIDs,
			Explanation: fmt.Sprintf(
				"vendor %s holds %.0f%% of %s spend across %d vendors (HHI %.2f, ceiling %.2f)",
				top.vendor, top.share*100, org, len(shares), hhi, cfg.HHICeiling),
		})
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
		Confidence:      stepConfidence(anomalies, adequacy(len(records), cfg.MinSampleSize)),
	}
	if deduped > 0 {
		result.Meta()[MetaRecordsDeduped] = deduped
	}
	return result
}

type vendorShare struct {
	vendor    string
	share     float64
	recordIDs []string
}

// vendorShares computes each vendor's fraction of total group value, sorted
// descending by share (ties broken by vendor name for determinism).
func vendorShares(records []models.Record) []vendorShare {
	totals := make(map[string]float64)
	ids := make(map[string][]string)
	total := 0.0
	for _, r := range records {
		vendor := r.Vendor
		if vendor == "" {
			vendor = "unknown-vendor"
		}
		totals[vendor] += r.Value
		ids[vendor] = append(ids[vendor], r.ID)
		total += r.Value
	}
	if total <= 0 {
		return nil
	}

	shares := make([]vendorShare, 0, len(totals))
	for vendor, sum := range totals {
		shares = append(shares, vendorShare{vendor: vendor, share: sum / total, recordIDs: ids[vendor]})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].share != shares[j].share {
			return shares[i].share > shares[j].share
		}
		return shares[i].vendor < shares[j].vendor
	})
	return shares
}

func severityFromHHI(hhi float64) models.Severity {
	switch {
	case hhi >= 0.7:
		return models.SeverityCritical
	case hhi >= 0.5:
		return models.SeverityHigh
	case hhi >= 0.35:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
