package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/grid"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

func TestDecode(t *testing.T) {
	lines := [][]string{
		{"Date", "Bank"},
		{"2024-01-01", "3"},
		{"2024-01-02"},
		{"", ""},
	}

	rows := grid.Decode(lines)

	assert.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0]["Bank"])
	assert.Equal(t, "", rows[1]["Bank"])
	assert.Equal(t, 2, grid.DataRows(lines))
}

func TestDecode_Empty(t *testing.T) {
	assert.Empty(t, grid.Decode(nil))
	assert.Empty(t, grid.Decode([][]string{{"Date"}}))
	assert.Equal(t, domain.Columns(), grid.Header(nil))
	assert.False(t, grid.HasHeader([][]string{{""}}))
}

func TestCheckPosition(t *testing.T) {
	tests := []struct {
		name     string
		position int
		rows     int
		wantErr  bool
	}{
		{"first data row", 2, 1, false},
		{"last data row", 4, 3, false},
		{"header row", 1, 3, true},
		{"past the end", 5, 3, true},
		{"empty store", 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := grid.CheckPosition(tt.position, tt.rows)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
