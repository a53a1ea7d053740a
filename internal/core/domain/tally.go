package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	// DateColumn is always the first column of the table.
	DateColumn = "Date"

	// DateLayout is the ISO-8601 calendar date format used for the Date column.
	DateLayout = "2006-01-02"

	// HeaderRows is the number of header rows that precede the data rows.
	HeaderRows = 1

	// FirstDataPosition is the 1-based store position of the first data row.
	FirstDataPosition = HeaderRows + 1
)

// Ticket categories counted each day, in column order.
const (
	CategoryAdditionalSegment = "Additional segment"
	CategoryBank              = "Bank"
	CategoryCloseAccount      = "Close account"
	CategoryEnableExchange    = "Enable exchange"
	CategoryReactivation      = "Reactivation"
	CategoryEmail             = "Email"
	CategoryMobileNumber      = "Mobile Number"
	CategoryOther             = "Other"
	CategoryComplaints        = "Complaints"
	CategoryShoonyaEmails     = "Emails related to shoonya"
)

// Categories lists the counted ticket categories in column order.
var Categories = []string{
	CategoryAdditionalSegment,
	CategoryBank,
	CategoryCloseAccount,
	CategoryEnableExchange,
	CategoryReactivation,
	CategoryEmail,
	CategoryMobileNumber,
	CategoryOther,
	CategoryComplaints,
	CategoryShoonyaEmails,
}

// CategoryLabels are the form labels shown next to each category input.
var CategoryLabels = map[string]string{
	CategoryAdditionalSegment: "Additional segments",
	CategoryBank:              "Bank account",
	CategoryCloseAccount:      "Closed accounts",
	CategoryEnableExchange:    "Enable exchange",
	CategoryReactivation:      "Reactivation",
	CategoryEmail:             "Email change",
	CategoryMobileNumber:      "Mobile number change",
	CategoryOther:             "Other tickets",
	CategoryComplaints:        "Complaints",
	CategoryShoonyaEmails:     "Emails related to shoonya",
}

// Columns returns the full ordered header: Date followed by the categories.
func Columns() []string {
	cols := make([]string, 0, len(Categories)+1)
	cols = append(cols, DateColumn)
	return append(cols, Categories...)
}

// IsCategory reports whether name is one of the counted categories.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// FormatDate renders t as a calendar date in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate validates s as a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Row is one record of the table, keyed by column name. Cell text is kept
// exactly as the store returned it.
type Row map[string]string

// Date returns the row's Date cell.
func (r Row) Date() string {
	return strings.TrimSpace(r[DateColumn])
}

// Values returns the row's cells in the given column order. Missing cells are "".
func (r Row) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = r[col]
	}
	return out
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowFromValues zips a header with one line of cells. Short lines are padded with "".
func RowFromValues(columns, values []string) Row {
	row := make(Row, len(columns))
	for i, col := range columns {
		if col == "" {
			continue
		}
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

// Counts maps each category to a validated non-negative count.
type Counts map[string]int

// ZeroCounts returns a Counts with every category set to zero.
func ZeroCounts() Counts {
	c := make(Counts, len(Categories))
	for _, cat := range Categories {
		c[cat] = 0
	}
	return c
}

// CountsFromRow reads category cells from row. Cells that are not
// non-negative integers count as zero.
func CountsFromRow(row Row) Counts {
	c := ZeroCounts()
	for _, cat := range Categories {
		if n, ok := parseCell(row[cat]); ok {
			c[cat] = n
		}
	}
	return c
}

// Merge returns a copy of c with the entries of override applied on top.
func (c Counts) Merge(override Counts) Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Row builds the full table row for date, in fixed column order.
func (c Counts) Row(date string) Row {
	row := make(Row, len(Categories)+1)
	row[DateColumn] = date
	for _, cat := range Categories {
		row[cat] = strconv.Itoa(c[cat])
	}
	return row
}

// Total is the sum of every category.
func (c Counts) Total() int {
	total := 0
	for _, cat := range Categories {
		total += c[cat]
	}
	return total
}

func parseCell(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	// Spreadsheets sometimes render integers as "5.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// RecordSet is a snapshot of every data row in store order.
type RecordSet struct {
	Columns []string
	Rows    []Row
}

// NewRecordSet wraps rows read from a store. Columns always follow the fixed
// header order.
func NewRecordSet(rows []Row) *RecordSet {
	if rows == nil {
		rows = []Row{}
	}
	return &RecordSet{Columns: Columns(), Rows: rows}
}

// Len returns the number of data rows.
func (rs *RecordSet) Len() int {
	return len(rs.Rows)
}

// IsEmpty reports whether the store held no data rows.
func (rs *RecordSet) IsEmpty() bool {
	return len(rs.Rows) == 0
}

// LastIndexOf returns the index of the last row whose Date equals date, or -1.
func (rs *RecordSet) LastIndexOf(date string) int {
	for i := len(rs.Rows) - 1; i >= 0; i-- {
		if rs.Rows[i].Date() == date {
			return i
		}
	}
	return -1
}

// DuplicateDates lists dates that appear on more than one row, in first-seen order.
func (rs *RecordSet) DuplicateDates() []string {
	seen := make(map[string]int, len(rs.Rows))
	var dups []string
	for _, row := range rs.Rows {
		d := row.Date()
		seen[d]++
		if seen[d] == 2 {
			dups = append(dups, d)
		}
	}
	return dups
}

// Table returns the rows as string slices in column order, untruncated.
func (rs *RecordSet) Table() [][]string {
	out := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row.Values(rs.Columns)
	}
	return out
}

// PositionOf converts a 0-based data row index into a 1-based store position.
func PositionOf(index int) int {
	return index + FirstDataPosition
}

// IndexOf converts a 1-based store position into a 0-based data row index.
func IndexOf(position int) int {
	return position - FirstDataPosition
}
