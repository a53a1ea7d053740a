package http

import (
	"io"
	"log/slog"
	"time"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/internal/core/services"
)

var fixedNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store ports.TabularStore) *services.TallyService {
	return services.NewTallyService(store, nil, nil, testLogger(), services.TallyServiceConfig{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
}

func dayRow(date string, n int) domain.Row {
	counts := domain.ZeroCounts()
	for _, cat := range domain.Categories {
		counts[cat] = n
	}
	return counts.Row(date)
}
