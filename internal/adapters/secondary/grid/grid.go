// Package grid converts between header-plus-lines grids, as spreadsheets and
// flat files hold them, and domain rows.
package grid

import (
	"fmt"
	"strings"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

// Decode treats the first line as the header and zips every following line
// against it. Blank trailing lines are dropped.
func Decode(lines [][]string) []domain.Row {
	if len(lines) <= domain.HeaderRows {
		return []domain.Row{}
	}
	header := lines[0]
	body := trimBlank(lines[domain.HeaderRows:])
	rows := make([]domain.Row, 0, len(body))
	for _, line := range body {
		rows = append(rows, domain.RowFromValues(header, line))
	}
	return rows
}

// Header returns the stored header, or the fixed column order when the grid
// has none yet.
func Header(lines [][]string) []string {
	if len(lines) == 0 || isBlank(lines[0]) {
		return domain.Columns()
	}
	return lines[0]
}

// HasHeader reports whether the first line is non-empty.
func HasHeader(lines [][]string) bool {
	return len(lines) > 0 && !isBlank(lines[0])
}

// CheckPosition validates a 1-based store position against the number of
// data rows currently stored.
func CheckPosition(position, dataRows int) error {
	idx := domain.IndexOf(position)
	if idx < 0 || idx >= dataRows {
		return fmt.Errorf("%w: position %d with %d data rows", apperrors.ErrInvalidPosition, position, dataRows)
	}
	return nil
}

// DataRows counts non-blank lines after the header.
func DataRows(lines [][]string) int {
	if len(lines) <= domain.HeaderRows {
		return 0
	}
	return len(trimBlank(lines[domain.HeaderRows:]))
}

func trimBlank(lines [][]string) [][]string {
	end := len(lines)
	for end > 0 && isBlank(lines[end-1]) {
		end--
	}
	return lines[:end]
}

func isBlank(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
