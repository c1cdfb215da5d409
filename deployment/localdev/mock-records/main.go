// mock-records serves a synthetic spending-records API for local
// development. The dataset is deterministic: routine monthly contracts, a
// handful of inflated payments, and one vendor dominating IT spend, so
// every detector has something to find.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

type record struct {
	ID           string    `json:"id"`
	Organization string    `json:"organization"`
	Vendor       string    `json:"vendor"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	Value        float64   `json:"value"`
	Date         time.Time `json:"date"`
}

type query struct {
	Organization string    `json:"organization"`
	Categories   []string  `json:"categories"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MinValue     float64   `json:"min_value"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	dataset := buildDataset()

	mux.HandleFunc("/api/v1/spending/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var q query
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"records": filter(dataset, q)})
	})

	addr := ":8085"
	log.Printf("mock spending-records API listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

func buildDataset() []record {
	base := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	vendors := []string{"Northfield Services", "Carter Logistics", "Binder Office Supply"}
	var out []record

	id := 0
	next := func() string {
		id++
		return fmt.Sprintf("rec-%04d", id)
	}

	for month := 0; month < 24; month++ {
		date := base.AddDate(0, month, 0)
		for i, vendor := range vendors {
			out = append(out, record{
				ID:           next(),
				Organization: "DOT",
				Vendor:       vendor,
				Category:     "construction",
				Description:  "routine maintenance contract",
				Value:        48000 + float64(i)*2500 + float64(month%3)*900,
				Date:         date,
			})
		}
		// IT spend concentrated on a single vendor, with a quarterly spike.
		value := 30000.0
		if month%3 == 0 {
			value = 95000
		}
		out = append(out, record{
			ID:           next(),
			Organization: "DOT",
			Vendor:       "Quantum Integrators",
			Category:     "it_services",
			Description:  "managed infrastructure",
			Value:        value,
			Date:         date,
		})
	}

	// Inflated payments against the routine baseline.
	out = append(out,
		record{ID: next(), Organization: "DOT", Vendor: "Carter Logistics", Category: "construction", Description: "emergency bridge repair", Value: 410000, Date: base.AddDate(0, 7, 3)},
		record{ID: next(), Organization: "DOT", Vendor: "Northfield Services", Category: "construction", Description: "change order 12", Value: 365000, Date: base.AddDate(0, 16, 1)},
	)
	return out
}

func filter(dataset []record, q query) []record {
	out := make([]record, 0, len(dataset))
	for _, r := range dataset {
		if q.Organization != "" && r.Organization != q.Organization {
			continue
		}
		if len(q.Categories) > 0 && !contains(q.Categories, r.Category) {
			continue
		}
		if q.MinValue > 0 && r.Value < q.MinValue {
			continue
		}
		if !q.Start.IsZero() && r.Date.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && r.Date.After(q.End) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}
