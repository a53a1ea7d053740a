package services

import (
	"github.com/lorrc/ticket-tally/internal/core/domain"
)

// Upsert actions.
const (
	ActionUpdate = "update"
	ActionAppend = "append"
)

// UpsertPlan is the decision for one submission: which write to issue and
// where the row ends up.
type UpsertPlan struct {
	Action   string
	Position int
	// Index is the 0-based data row index the row occupies after the write.
	Index int
	Row   domain.Row
}

// PlanUpsert decides between overwriting and appending. When several rows
// share targetDate the last one wins, so an accidental duplicate never hides
// the most recent edit. The planned row is always a full overwrite.
func PlanUpsert(records *domain.RecordSet, targetDate string, counts domain.Counts) UpsertPlan {
	row := domain.ZeroCounts().Merge(counts).Row(targetDate)

	if idx := records.LastIndexOf(targetDate); idx >= 0 {
		return UpsertPlan{
			Action:   ActionUpdate,
			Position: domain.PositionOf(idx),
			Index:    idx,
			Row:      row,
		}
	}

	idx := records.Len()
	return UpsertPlan{
		Action:   ActionAppend,
		Position: domain.PositionOf(idx),
		Index:    idx,
		Row:      row,
	}
}

// ResolveDefaults returns the values the entry form starts from: the last
// row for targetDate if there is one, otherwise zero for every category.
func ResolveDefaults(records *domain.RecordSet, targetDate string) domain.Counts {
	if idx := records.LastIndexOf(targetDate); idx >= 0 {
		return domain.CountsFromRow(records.Rows[idx])
	}
	return domain.ZeroCounts()
}
