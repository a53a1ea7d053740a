package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

// TallyServiceConfig holds the non-dependency settings of the service.
type TallyServiceConfig struct {
	// Location defines the calendar day that "today" refers to.
	Location *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// TallyService implements the daily read-decide-write cycle.
type TallyService struct {
	store       ports.TabularStore
	broadcaster ports.EventBroadcaster
	metrics     ports.TallyMetrics
	logger      *slog.Logger
	location    *time.Location
	now         func() time.Time
	locks       *dateLocks
}

var _ ports.TallyService = (*TallyService)(nil)

// NewTallyService creates a new tally service. broadcaster and metrics may be nil.
func NewTallyService(
	store ports.TabularStore,
	broadcaster ports.EventBroadcaster,
	metrics ports.TallyMetrics,
	logger *slog.Logger,
	cfg TallyServiceConfig,
) *TallyService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &TallyService{
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger.With("component", "tally_service"),
		location:    cfg.Location,
		now:         cfg.Now,
		locks:       newDateLocks(),
	}
}

// Init makes sure the store carries the header row.
func (s *TallyService) Init(ctx context.Context) error {
	if err := s.store.EnsureHeader(ctx, domain.Columns()); err != nil {
		return apperrors.NewStoreError("store", "ensure header", err)
	}
	return nil
}

// Today returns the current calendar date in the configured zone.
func (s *TallyService) Today() string {
	return domain.FormatDate(s.now().In(s.location))
}

// Records reads a fresh snapshot of the table. An empty store is not an error.
func (s *TallyService) Records(ctx context.Context) (*domain.RecordSet, error) {
	rows, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("store", "read", err)
	}
	return domain.NewRecordSet(rows), nil
}

// Defaults returns the form values for date (empty means today) along with
// the snapshot they were resolved from.
func (s *TallyService) Defaults(ctx context.Context, date string) (*ports.DayView, *domain.RecordSet, error) {
	target, err := domain.ResolveTargetDate(date, s.now(), s.location)
	if err != nil {
		return nil, nil, err
	}

	records, err := s.Records(ctx)
	if err != nil {
		return nil, nil, err
	}

	view := &ports.DayView{
		Date:   target,
		Counts: ResolveDefaults(records, target),
	}
	if idx := records.LastIndexOf(target); idx >= 0 {
		view.Exists = true
		view.Position = domain.PositionOf(idx)
	}
	return view, records, nil
}

// Submit validates the values, upserts the row for the target date and
// returns the refreshed snapshot. Exactly one store write is issued, and
// none when validation fails.
func (s *TallyService) Submit(ctx context.Context, params ports.SubmitParams) (*ports.SubmitResult, error) {
	// 1. Validate before touching the store
	counts, err := domain.ParseCounts(params.Values)
	if err != nil {
		s.metrics.ObserveValidationFailure()
		return nil, err
	}

	date, err := domain.ResolveTargetDate(params.Date, s.now(), s.location)
	if err != nil {
		s.metrics.ObserveValidationFailure()
		return nil, err
	}

	// 2. Serialize submissions for the same day
	unlock := s.locks.Lock(date)
	defer unlock()

	// 3. Read the current table
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	// 4. Decide; omitted categories keep their current values
	defaults := ResolveDefaults(records, date)
	plan := PlanUpsert(records, date, defaults.Merge(counts))

	// 5. Write
	switch plan.Action {
	case ActionUpdate:
		err = s.store.WriteAt(ctx, plan.Position, plan.Row)
	default:
		err = s.store.Append(ctx, plan.Row)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("store", plan.Action, err)
	}

	s.metrics.ObserveSubmission(plan.Action)
	s.logger.InfoContext(ctx, "tally saved",
		"date", date,
		"action", plan.Action,
		"position", plan.Position,
		"submitted_by", params.SubmittedBy,
	)

	// 6. Re-read so the caller renders what the store now holds
	updated, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	s.broadcastUpdate(plan, date, params.SubmittedBy)

	return &ports.SubmitResult{
		Action:   plan.Action,
		Position: plan.Position,
		Date:     date,
		Row:      plan.Row,
		Records:  updated,
	}, nil
}

// Summary aggregates the current table.
func (s *TallyService) Summary(ctx context.Context) (*domain.Summary, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

func (s *TallyService) broadcastUpdate(plan UpsertPlan, date, submittedBy string) {
	if s.broadcaster == nil {
		return
	}
	event := domain.Event{
		Type: domain.EventTallyUpdated,
		Payload: domain.TallyUpdatedPayload{
			Action:      plan.Action,
			Position:    plan.Position,
			Date:        date,
			Row:         plan.Row,
			SubmittedBy: submittedBy,
		},
	}
	if err := s.broadcaster.Broadcast(event); err != nil {
		s.logger.Warn("failed to broadcast tally update", "date", date, "error", err)
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveSubmission(string) {}
func (noopMetrics) ObserveValidationFailure() {}
