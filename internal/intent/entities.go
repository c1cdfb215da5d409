package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spendlens/spendlens-engine/internal/models"
)

var (
	yearRangeRe = regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|to|through|until)\s*((?:19|20)\d{2})\b`)
	yearRe      = regexp.MustCompile(`\b((19|20)\d{2})\b`)
	lastYearsRe = regexp.MustCompile(`\blast\s+(\d{1,2})\s+years?\b`)
	orgCodeRe   = regexp.MustCompile(`\b(?:org|agency|ministry|department)[\s:#]*([A-Za-z][A-Za-z0-9-]{1,11})\b`)
	moneyRe     = regexp.MustCompile(`(?:above|over|more than|exceeding|>)\s*\$?\s*([\d][\d,.]*)\s*(k|m|b|thousand|million|billion)?\b`)
)

// categoryTerms maps cue words to the normalized category they select.
var categoryTerms = map[string]string{
	"construction":   "construction",
	"infrastructure": "construction",
	"medical":        "health",
	"health":         "health",
	"hospital":       "health",
	"software":       "technology",
	"technology":     "technology",
	"it services":    "technology",
	"consulting":     "consulting",
	"transport":      "transportation",
	"education":      "education",
	"school":         "education",
	"security":       "security",
	"defense":        "security",
}

// ExtractEntities pulls structured values out of a free-text query using
// pattern and dictionary matching: date ranges, organization codes, monetary
// thresholds, spending categories.
func ExtractEntities(query string) models.Entities {
	text := strings.ToLower(query)
	entities := models.Entities{}

	entities.DateRange = extractDateRange(text, time.Now().UTC())

	if m := orgCodeRe.FindStringSubmatch(text); m != nil {
		entities.Organization = strings.ToUpper(m[1])
	}

	if m := moneyRe.FindStringSubmatch(text); m != nil {
		entities.MinValue = parseMoney(m[1], m[2])
	}

	for term, category := range categoryTerms {
		if strings.Contains(text, term) && !containsString(entities.Categories, category) {
			entities.Categories = append(entities.Categories, category)
		}
	}
	// Map iteration above is unordered; keep output stable.
	sort.Strings(entities.Categories)

	return entities
}

func extractDateRange(text string, now time.Time) models.TimeRange {
	if m := yearRangeRe.FindStringSubmatch(text); m != nil {
		fromYear, _ := strconv.Atoi(m[1])
		toYear, _ := strconv.Atoi(m[2])
		if toYear >= fromYear {
			return models.TimeRange{
				Start: time.Date(fromYear, time.January, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(toYear, time.December, 31, 23, 59, 59, 0, time.UTC),
			}
		}
	}

	if m := lastYearsRe.FindStringSubmatch(text); m != nil {
		years, _ := strconv.Atoi(m[1])
		if years > 0 {
			return models.TimeRange{Start: now.AddDate(-years, 0, 0), End: now}
		}
	}

	if m := yearRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		return models.TimeRange{
			Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC),
		}
	}

	return models.TimeRange{}
}

func parseMoney(amount, suffix string) float64 {
	amount = strings.ReplaceAll(amount, ",", "")
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0
	}
	switch suffix {
	case "k", "thousand":
		value *= 1_000
	case "m", "million":
		value *= 1_000_000
	case "b", "billion":
		value *= 1_000_000_000
	}
	return value
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
