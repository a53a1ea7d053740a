package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/grid"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

const backend = "xlsx"

// Store keeps the table on one worksheet of an .xlsx workbook, header in
// row 1. The workbook is opened per call so edits made in a spreadsheet
// application between cycles are picked up.
type Store struct {
	path   string
	sheet  string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ ports.TabularStore = (*Store)(nil)
var _ ports.StorePinger = (*Store)(nil)

func New(path, sheet string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewStoreError(backend, "open", err)
		}
	}
	return &Store{path: path, sheet: sheet, logger: logger}, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	defer f.Close()

	lines, err := s.lines(f)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	return grid.Decode(lines), nil
}

func (s *Store) WriteAt(ctx context.Context, position int, row domain.Row) error {
	return s.mutate("write", func(f *excelize.File, lines [][]string) error {
		if err := grid.CheckPosition(position, grid.DataRows(lines)); err != nil {
			return err
		}
		return s.setRow(f, position, grid.Header(lines), row)
	})
}

func (s *Store) Append(ctx context.Context, row domain.Row) error {
	return s.mutate("append", func(f *excelize.File, lines [][]string) error {
		header := grid.Header(lines)
		if !grid.HasHeader(lines) {
			if err := s.setLine(f, 1, header); err != nil {
				return err
			}
		}
		return s.setRow(f, domain.PositionOf(grid.DataRows(lines)), header, row)
	})
}

func (s *Store) EnsureHeader(ctx context.Context, columns []string) error {
	return s.mutate("header", func(f *excelize.File, lines [][]string) error {
		if grid.HasHeader(lines) {
			return errSkipSave
		}
		s.logger.Info("writing header", "backend", backend, "path", s.path, "sheet", s.sheet)
		return s.setLine(f, 1, columns)
	})
}

// Ping opens the workbook when it exists.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return apperrors.NewStoreError(backend, "ping", err)
	}
	return f.Close()
}

var errSkipSave = errors.New("nothing to save")

func (s *Store) mutate(op string, fn func(*excelize.File, [][]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return apperrors.NewStoreError(backend, op, err)
	}
	defer f.Close()

	lines, err := s.lines(f)
	if err != nil {
		return apperrors.NewStoreError(backend, op, err)
	}

	if err := fn(f, lines); err != nil {
		if errors.Is(err, errSkipSave) {
			return nil
		}
		return apperrors.NewStoreError(backend, op, err)
	}
	return apperrors.NewStoreError(backend, op, f.SaveAs(s.path))
}

// open returns the workbook, or a fresh one holding the configured sheet.
func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
	} else if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	if idx, err := f.GetSheetIndex(s.sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(s.sheet)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.SetActiveSheet(idx)
	}
	return f, nil
}

func (s *Store) lines(f *excelize.File) ([][]string, error) {
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", s.sheet, err)
	}
	return rows, nil
}

func (s *Store) setLine(f *excelize.File, position int, values []string) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, position)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// setRow writes row under header. Integer cells are stored as numbers so the
// sheet stays usable for formulas.
func (s *Store) setRow(f *excelize.File, position int, header []string, row domain.Row) error {
	for i, col := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, position)
		if err != nil {
			return err
		}
		var value any = row[col]
		if col != domain.DateColumn {
			if n, err := strconv.Atoi(row[col]); err == nil {
				value = n
			}
		}
		if err := f.SetCellValue(s.sheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}
