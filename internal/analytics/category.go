package analytics

import (
	"sort"

	"moneta/internal/core"
)

// UncategorizedID is the reserved bucket for transactions without a
// category reference. Such records are never dropped.
const UncategorizedID = "uncategorized"

const (
	uncategorizedLabel = "Uncategorized"
	uncategorizedColor = "#9e9e9e"
	defaultColor       = "#607d8b"
)

// CategorySummary is the derived per-category aggregate: total volume
// (absolute amounts of both types, not net position) and its share of the
// grand total.
type CategorySummary struct {
	CategoryID   string
	Label        string
	Color        string
	Total        core.Money
	SharePercent float64
}

// GroupByCategory buckets transactions by category, ranks buckets descending
// by total volume (ties broken ascending by category id for determinism) and
// computes percentage shares. Labels and colors come from the catalog;
// unknown references keep their id as label. Malformed records are skipped
// and reported.
func GroupByCategory(records []core.Transaction, catalog []core.Category) ([]CategorySummary, []RecordError) {
	byID := make(map[string]core.Category, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}

	totals := make(map[string]int64)
	var skipped []RecordError
	for _, tx := range records {
		if err := checkRecord(tx); err != nil {
			skipped = append(skipped, RecordError{ID: tx.ID, Err: err})
			continue
		}
		id := tx.CategoryID
		if id == "" {
			id = UncategorizedID
		}
		totals[id] += tx.Amount.Cents
	}

	var grand int64
	for _, cents := range totals {
		grand += cents
	}

	out := make([]CategorySummary, 0, len(totals))
	for id, cents := range totals {
		s := CategorySummary{
			CategoryID: id,
			Label:      id,
			Color:      defaultColor,
			Total:      core.Money{Cents: cents},
		}
		if id == UncategorizedID {
			s.Label = uncategorizedLabel
			s.Color = uncategorizedColor
		} else if cat, ok := byID[id]; ok {
			s.Label = cat.Name
			s.Color = cat.Color
		}
		if grand > 0 {
			s.SharePercent = float64(cents) / float64(grand) * 100
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, skipped
}

// TopN truncates an already-ranked summary list to its first n entries.
// Truncation happens after sorting, never before.
func TopN(summaries []CategorySummary, n int) []CategorySummary {
	if n < 0 {
		n = 0
	}
	if n >= len(summaries) {
		return summaries
	}
	return summaries[:n]
}
