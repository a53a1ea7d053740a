package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

const backend = "postgres"

// appendLockKey serializes appends so two writers never claim the same position.
const appendLockKey int64 = 0x7461_6c6c_79

// TallyStore keeps the table in tally_header and tally_rows. Cells are a
// JSONB object keyed by column name so stored text round-trips verbatim.
type TallyStore struct {
	pool   *pgxpool.Pool
	tx     *TransactionManager
	logger *slog.Logger
}

var _ ports.TabularStore = (*TallyStore)(nil)
var _ ports.StorePinger = (*TallyStore)(nil)

func NewTallyStore(pool *pgxpool.Pool, logger *slog.Logger) *TallyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TallyStore{
		pool:   pool,
		tx:     NewTransactionManager(pool),
		logger: logger,
	}
}

func (s *TallyStore) ReadAll(ctx context.Context) ([]domain.Row, error) {
	rows, err := s.pool.Query(ctx, `SELECT cells FROM tally_rows ORDER BY position`)
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Row, error) {
		var cells map[string]string
		if err := row.Scan(&cells); err != nil {
			return nil, err
		}
		return domain.Row(cells), nil
	})
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "read", err)
	}
	if out == nil {
		out = []domain.Row{}
	}
	return out, nil
}

func (s *TallyStore) WriteAt(ctx context.Context, position int, row domain.Row) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE tally_rows SET cells = $2, updated_at = now() WHERE position = $1`,
		position, cells,
	)
	if err != nil {
		return apperrors.NewStoreError(backend, "write", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewStoreError(backend, "write",
			fmt.Errorf("%w: position %d", apperrors.ErrInvalidPosition, position))
	}
	return nil
}

func (s *TallyStore) Append(ctx context.Context, row domain.Row) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return apperrors.NewStoreError(backend, "append", err)
	}

	err = s.tx.WithAdvisoryLock(ctx, appendLockKey, func(ctx context.Context, tx pgx.Tx) error {
		return insertNext(ctx, tx, cells)
	})
	return apperrors.NewStoreError(backend, "append", err)
}

func insertNext(ctx context.Context, db DBTX, cells []byte) error {
	var position int
	err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), $1) + 1 FROM tally_rows`,
		domain.HeaderRows,
	).Scan(&position)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO tally_rows (position, cells) VALUES ($1, $2)`, position, cells)
	return err
}

func (s *TallyStore) EnsureHeader(ctx context.Context, columns []string) error {
	payload, err := json.Marshal(columns)
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tally_header (id, columns) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		payload,
	)
	if err != nil {
		return apperrors.NewStoreError(backend, "header", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.InfoContext(ctx, "writing header", "backend", backend)
	}
	return nil
}

// Header returns the stored column names, or nil when no header exists.
func (s *TallyStore) Header(ctx context.Context) ([]string, error) {
	var columns []string
	err := s.pool.QueryRow(ctx, `SELECT columns FROM tally_header WHERE id = 1`).Scan(&columns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError(backend, "header", err)
	}
	return columns, nil
}

func (s *TallyStore) Ping(ctx context.Context) error {
	return apperrors.NewStoreError(backend, "ping", s.pool.Ping(ctx))
}

// Close releases the pool.
func (s *TallyStore) Close() error {
	s.pool.Close()
	return nil
}
