package patterns

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// History serves finished investigations for mining.
type History interface {
	ListCompleted(ctx context.Context, limit int) ([]models.Investigation, error)
}

// Hotspot is an aggregated view of one anomaly type across the
// investigation history: how often it recurs, how confident the detectors
// were, and which records it keeps touching.
type Hotspot struct {
	AnomalyType     string          `json:"anomaly_type"`
	Investigations  int             `json:"investigations"`
	Occurrences     int             `json:"occurrences"`
	Prevalence      float64         `json:"prevalence"`
	MeanConfidence  float64         `json:"mean_confidence"`
	TopSeverity     models.Severity `json:"top_severity"`
	LastSeen        time.Time       `json:"last_seen"`
	SampleRecordIDs []string        `json:"sample_record_ids,omitempty"`
}

// maxSampleRecords caps the record ids kept per hotspot.
const maxSampleRecords = 5

// Summarizer mines recurring anomaly hotspots from finished
// investigations.
type Summarizer struct {
	history History
	logger  *slog.Logger
}

// NewSummarizer constructs a Summarizer over the given history.
func NewSummarizer(history History, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{history: history, logger: logger}
}

// Summarize aggregates the most recent finished investigations into
// hotspots ordered by prevalence.
func (s *Summarizer) Summarize(ctx context.Context, limit int) ([]Hotspot, error) {
	history, err := s.history.ListCompleted(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	stats := make(map[string]*typeAggregate)
	for _, inv := range history {
		seen := make(map[string]bool)
		lastSeen := inv.StartedAt
		if inv.CompletedAt != nil {
			lastSeen = *inv.CompletedAt
		}
		for _, a := range inv.Results {
			agg := stats[a.Type]
			if agg == nil {
				agg = &typeAggregate{topSeverity: a.Severity}
				stats[a.Type] = agg
			}
			agg.occurrences++
			agg.confidenceSum += a.Confidence
			if a.Severity.AtLeast(agg.topSeverity) {
				agg.topSeverity = a.Severity
			}
			if lastSeen.After(agg.lastSeen) {
				agg.lastSeen = lastSeen
			}
			agg.sample(a.RecordIDs)
			if !seen[a.Type] {
				seen[a.Type] = true
				agg.investigations++
			}
		}
	}

	hotspots := make([]Hotspot, 0, len(stats))
	for anomalyType, agg := range stats {
		hotspots = append(hotspots, Hotspot{
			AnomalyType:     anomalyType,
			Investigations:  agg.investigations,
			Occurrences:     agg.occurrences,
			Prevalence:      float64(agg.investigations) / float64(len(history)),
			MeanConfidence:  agg.confidenceSum / float64(agg.occurrences),
			TopSeverity:     agg.topSeverity,
			LastSeen:        agg.lastSeen,
			SampleRecordIDs: agg.records,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Prevalence != hotspots[j].Prevalence {
			return hotspots[i].Prevalence > hotspots[j].Prevalence
		}
		return hotspots[i].AnomalyType < hotspots[j].AnomalyType
	})

	s.logger.Debug("hotspot summary mined", "investigations", len(history), "hotspots", len(hotspots))
	return hotspots, nil
}

type typeAggregate struct {
	investigations int
	occurrences    int
	confidenceSum  float64
	topSeverity    models.Severity
	lastSeen       time.Time
	records        []string
	recordSet      map[string]bool
}

func (a *typeAggregate) sample(ids []string) {
	for _, id := range ids {
		if len(a.records) >= maxSampleRecords {
			return
		}
		if a.recordSet == nil {
			a.recordSet = make(map[string]bool)
		}
		if a.recordSet[id] {
			continue
		}
		a.recordSet[id] = true
		a.records = append(a.records, id)
	}
}
