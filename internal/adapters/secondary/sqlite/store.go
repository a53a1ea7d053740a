package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/migrations"
)

const backend = "sqlite"

// Store keeps the table in a local SQLite database using the same layout as
// the postgres store, with cells held as JSON text.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

var _ ports.TabularStore = (*Store)(nil)
var _ ports.StorePinger = (*Store)(nil)

// Open migrates and opens the database file at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "ticket_tally.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, apperrors.NewStoreError(backend, "open", fmt.Errorf("create dirs: %w", err))
	}
	if err := migrateUp(path); err != nil {
		return nil, apperrors.NewStoreError(backend, "open", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "open", fmt.Errorf("open sqlite: %w", err))
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return &Store{db: db, path: path, logger: logger}, nil
}

func migrateUp(path string) error {
	src, err := iofs.New(migrations.FS, migrations.SQLite)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}
	mig, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (s *Store) ReadAll(ctx context.Context) ([]domain.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM tally_rows ORDER BY position`)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Row{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.NewStoreError(backend, "read", fmt.Errorf("scan: %w", err))
		}
		var row domain.Row
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, apperrors.NewStoreError(backend, "read", fmt.Errorf("decode row: %w", err))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	return out, nil
}

func (s *Store) WriteAt(ctx context.Context, position int, row domain.Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tally_rows SET cells = ?, updated_at = CURRENT_TIMESTAMP WHERE position = ?`,
		string(payload), position,
	)
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewStoreError(backend, "write",
			fmt.Errorf("%w: position %d", apperrors.ErrInvalidPosition, position))
	}
	return nil
}

func (s *Store) Append(ctx context.Context, row domain.Row) (retErr error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), ?) + 1 FROM tally_rows`, domain.HeaderRows,
	).Scan(&position); err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tally_rows (position, cells) VALUES (?, ?)`, position, string(payload),
	); err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}
	return apperrors.NewStoreError(backend, "append", tx.Commit())
}

func (s *Store) EnsureHeader(ctx context.Context, columns []string) error {
	payload, err := json.Marshal(columns)
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tally_header (id, columns) VALUES (1, ?) ON CONFLICT (id) DO NOTHING`,
		string(payload),
	)
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.InfoContext(ctx, "writing header", "backend", backend, "path", s.path)
	}
	return nil
}

// Header returns the stored column names, or nil when no header exists.
func (s *Store) Header(ctx context.Context) ([]string, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM tally_header WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "header", err)
	}
	var columns []string
	if err := json.Unmarshal([]byte(payload), &columns); err != nil {
		return nil, apperrors.NewStoreError(backend, "header", err)
	}
	return columns, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return apperrors.NewStoreError(backend, "ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}
