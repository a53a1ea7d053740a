package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/grid"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

const backend = "csv"

// Store keeps the table in a single CSV file. Every mutation rewrites the
// file through a temp file and rename.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

var _ ports.TabularStore = (*Store)(nil)
var _ ports.StorePinger = (*Store)(nil)

// New creates a store backed by path, creating its directory if needed.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewStoreError(backend, "open", err)
		}
	}
	return &Store{path: path, logger: logger}, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	return grid.Decode(lines), nil
}

func (s *Store) WriteAt(ctx context.Context, position int, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}
	if err := grid.CheckPosition(position, grid.DataRows(lines)); err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}

	lines[domain.IndexOf(position)+domain.HeaderRows] = row.Values(grid.Header(lines))
	return apperrors.NewStoreError(backend, "write", s.save(lines))
}

func (s *Store) Append(ctx context.Context, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}
	header := grid.Header(lines)
	if !grid.HasHeader(lines) {
		lines = [][]string{header}
	}
	// Drop trailing blank lines so the new row lands at the next position.
	lines = lines[:domain.HeaderRows+grid.DataRows(lines)]
	lines = append(lines, row.Values(header))
	return apperrors.NewStoreError(backend, "append", s.save(lines))
}

func (s *Store) EnsureHeader(ctx context.Context, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.load()
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}
	if grid.HasHeader(lines) {
		return nil
	}

	s.logger.Info("writing header", "backend", backend, "path", s.path)
	if len(lines) == 0 {
		lines = [][]string{columns}
	} else {
		lines[0] = columns
	}
	return apperrors.NewStoreError(backend, "header", s.save(lines))
}

// Ping checks that the file, or its directory when the file is absent, is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewStoreError(backend, "ping", err)
	}
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return apperrors.NewStoreError(backend, "ping", err)
	}
	return nil
}

func (s *Store) load() ([][]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return lines, nil
}

func (s *Store) save(lines [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tally-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(lines); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
