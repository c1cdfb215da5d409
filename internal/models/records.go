package models

import "time"

// Record is a normalized spending record as returned by the data fetcher.
type Record struct {
	ID           string    `json:"id"`
	Organization string    `json:"organization"`
	Vendor       string    `json:"vendor"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	Value        float64   `json:"value"`
	Date         time.Time `json:"date"`
}

// QuerySpec narrows which records the data fetcher should return.
type QuerySpec struct {
	Organization string    `json:"organization,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MinValue     float64   `json:"min_value,omitempty"`
}

// TimeRange bounds the analysis window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
