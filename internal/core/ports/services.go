package ports

import (
	"context"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

// SubmitParams defines the input of one daily submission.
type SubmitParams struct {
	// Date is the target day as YYYY-MM-DD; empty means today.
	Date string
	// Values maps category names to raw submitted values.
	Values      map[string]any
	SubmittedBy string
}

// SubmitResult describes the write that a submission performed.
type SubmitResult struct {
	Action   string
	Position int
	Date     string
	Row      domain.Row
	Records  *domain.RecordSet
}

// DayView is what the entry form needs for one date.
type DayView struct {
	Date     string
	Counts   domain.Counts
	Exists   bool
	Position int
}

// TallyService defines the core operations of the daily tally.
type TallyService interface {
	Init(ctx context.Context) error
	Today() string
	Records(ctx context.Context) (*domain.RecordSet, error)
	Defaults(ctx context.Context, date string) (*DayView, *domain.RecordSet, error)
	Submit(ctx context.Context, params SubmitParams) (*SubmitResult, error)
	Summary(ctx context.Context) (*domain.Summary, error)
}

// EventBroadcaster defines the port for pushing real-time events.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// TallyMetrics records service-level counters.
type TallyMetrics interface {
	ObserveSubmission(action string)
	ObserveValidationFailure()
}
