package ports

import (
	"context"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

// TabularStore is the port for the persistent table of daily rows. Positions
// are 1-based and count the header row, so the first data row is at
// domain.FirstDataPosition.
type TabularStore interface {
	// ReadAll returns every data row in store order, reflecting all committed writes.
	ReadAll(ctx context.Context) ([]domain.Row, error)
	// WriteAt replaces the whole row at position.
	WriteAt(ctx context.Context, position int, row domain.Row) error
	// Append adds row after the last data row.
	Append(ctx context.Context, row domain.Row) error
	// EnsureHeader writes the header row only if the store has none.
	EnsureHeader(ctx context.Context, columns []string) error
}

// StorePinger is implemented by stores that can report their own health.
type StorePinger interface {
	Ping(ctx context.Context) error
}
