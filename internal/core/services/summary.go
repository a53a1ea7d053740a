package services

import (
	"github.com/montanaflynn/stats"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

// Summarize aggregates each category over the distinct dates of records.
// When a date appears more than once only its last row is counted.
func Summarize(records *domain.RecordSet) *domain.Summary {
	summary := &domain.Summary{
		DuplicateDates: records.DuplicateDates(),
		Categories:     make([]domain.CategorySummary, 0, len(domain.Categories)),
	}
	if summary.DuplicateDates == nil {
		summary.DuplicateDates = []string{}
	}

	days := effectiveRows(records)
	summary.Days = len(days)
	for _, row := range days {
		d := row.Date()
		if _, ok := domain.ParseDate(d); !ok {
			continue
		}
		if summary.FirstDate == "" || d < summary.FirstDate {
			summary.FirstDate = d
		}
		if d > summary.LastDate {
			summary.LastDate = d
		}
	}

	series := make(map[string][]float64, len(domain.Categories))
	for _, row := range days {
		counts := domain.CountsFromRow(row)
		for _, cat := range domain.Categories {
			series[cat] = append(series[cat], float64(counts[cat]))
		}
	}

	for _, cat := range domain.Categories {
		summary.Categories = append(summary.Categories, summarizeSeries(cat, series[cat]))
	}
	return summary
}

func summarizeSeries(category string, data []float64) domain.CategorySummary {
	cs := domain.CategorySummary{Category: category}
	if len(data) == 0 {
		return cs
	}

	// The stats functions only fail on empty input, which is excluded above.
	total, _ := stats.Sum(data)
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	maxVal, _ := stats.Max(data)

	cs.Total = int(total)
	cs.Mean, _ = stats.Round(mean, 2)
	cs.Median = median
	cs.Max = int(maxVal)
	return cs
}

// effectiveRows keeps the last row of every date, in first-seen date order.
func effectiveRows(records *domain.RecordSet) []domain.Row {
	order := make([]string, 0, len(records.Rows))
	last := make(map[string]domain.Row, len(records.Rows))
	for _, row := range records.Rows {
		d := row.Date()
		if _, seen := last[d]; !seen {
			order = append(order, d)
		}
		last[d] = row
	}

	out := make([]domain.Row, 0, len(order))
	for _, d := range order {
		out = append(out, last[d])
	}
	return out
}
