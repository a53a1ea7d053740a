package xlsx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/xlsx"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

func newStore(t *testing.T) (*xlsx.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.xlsx")
	s, err := xlsx.New(path, "Tally", nil)
	require.NoError(t, err)
	return s, path
}

func TestStore_MissingWorkbookIsEmpty(t *testing.T) {
	s, _ := newStore(t)

	rows, err := s.ReadAll(context.Background())

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_RoundTrip(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))
	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))
	require.NoError(t, s.Append(ctx, domain.ZeroCounts().Row("2024-01-01")))
	require.NoError(t, s.Append(ctx, domain.ZeroCounts().Row("2024-01-02")))

	counts := domain.ZeroCounts().Merge(domain.Counts{domain.CategoryComplaints: 4})
	require.NoError(t, s.WriteAt(ctx, 2, counts.Row("2024-01-01")))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "4", rows[0][domain.CategoryComplaints])
	assert.Equal(t, "2024-01-02", rows[1].Date())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Tally", "A1")
	require.NoError(t, err)
	assert.Equal(t, domain.DateColumn, header)
}

func TestStore_WriteAtOutOfRange(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))

	err := s.WriteAt(ctx, 2, domain.ZeroCounts().Row("2024-01-01"))

	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)
}
