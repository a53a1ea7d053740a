package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/grid"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

const (
	backend = "sheets"

	// Cells are written as given, never parsed by the spreadsheet.
	valueInputOption = "RAW"
)

// Store keeps the table on one worksheet of a Google spreadsheet.
type Store struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	sheet         string
	logger        *slog.Logger
}

var _ ports.TabularStore = (*Store)(nil)
var _ ports.StorePinger = (*Store)(nil)

// New connects to the Sheets API. Callers supply credentials through opts,
// typically option.WithCredentialsFile.
func New(ctx context.Context, spreadsheetID, sheet string, logger *slog.Logger, opts ...option.ClientOption) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "open", err)
	}
	return &Store{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger,
	}, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]domain.Row, error) {
	lines, err := s.lines(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	return grid.Decode(lines), nil
}

func (s *Store) WriteAt(ctx context.Context, position int, row domain.Row) error {
	lines, err := s.lines(ctx)
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}
	if err := grid.CheckPosition(position, grid.DataRows(lines)); err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}

	err = s.update(ctx, position, cells(grid.Header(lines), row))
	return apperrors.NewStoreError(backend, "write", err)
}

func (s *Store) Append(ctx context.Context, row domain.Row) error {
	lines, err := s.lines(ctx)
	if err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}

	vr := &gsheets.ValueRange{Values: [][]interface{}{cells(grid.Header(lines), row)}}
	_, err = s.values.Append(s.spreadsheetID, s.a1(1), vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return apperrors.NewStoreError(backend, "append", err)
}

func (s *Store) EnsureHeader(ctx context.Context, columns []string) error {
	lines, err := s.lines(ctx)
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}
	if grid.HasHeader(lines) {
		return nil
	}

	s.logger.Info("writing header", "backend", backend, "sheet", s.sheet)
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	return apperrors.NewStoreError(backend, "header", s.update(ctx, 1, header))
}

// Ping reads the header row.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.values.Get(s.spreadsheetID, s.a1(1)).Context(ctx).Do()
	return apperrors.NewStoreError(backend, "ping", err)
}

func (s *Store) lines(ctx context.Context) ([][]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, quoteSheet(s.sheet)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	lines := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		line := make([]string, len(raw))
		for j, v := range raw {
			line[j] = fmt.Sprint(v)
		}
		lines[i] = line
	}
	return lines, nil
}

func (s *Store) update(ctx context.Context, position int, values []interface{}) error {
	vr := &gsheets.ValueRange{Values: [][]interface{}{values}}
	_, err := s.values.Update(s.spreadsheetID, s.a1(position), vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	return err
}

// a1 addresses the first cell of a 1-based row, e.g. 'Sheet1'!A5.
func (s *Store) a1(position int) string {
	cell, _ := excelize.CoordinatesToCellName(1, position)
	return quoteSheet(s.sheet) + "!" + cell
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// cells orders row under header. Values stay strings so RAW input stores
// them as text, exactly as submitted.
func cells(header []string, row domain.Row) []interface{} {
	out := make([]interface{}, len(header))
	for i, col := range header {
		out[i] = row[col]
	}
	return out
}
