// Package export renders a RecordSet as a downloadable CSV document.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/lorrc/ticket-tally/internal/core/domain"
)

// ContentType is the media type of the export.
const ContentType = "text/csv; charset=utf-8"

// Filename names the export for the given day.
func Filename(date string) string {
	return fmt.Sprintf("ticket_tally_%s.csv", date)
}

// WriteCSV writes the header line followed by one line per row, in store
// order. Cell text is written untruncated.
func WriteCSV(w io.Writer, records *domain.RecordSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(records.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(records.Table()); err != nil {
		return err
	}
	return cw.Error()
}
