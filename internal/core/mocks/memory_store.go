package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

// MemoryStore is an in-memory ports.TabularStore for tests. It records the
// writes it receives so tests can assert on store mutations.
type MemoryStore struct {
	mu      sync.Mutex
	header  []string
	rows    []domain.Row
	Writes  []int
	Appends int

	// FailWith, when set, is returned by every call.
	FailWith error
}

var _ ports.TabularStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding rows (no header).
func NewMemoryStore(rows ...domain.Row) *MemoryStore {
	s := &MemoryStore{}
	for _, r := range rows {
		s.rows = append(s.rows, r.Clone())
	}
	return s
}

func (s *MemoryStore) ReadAll(ctx context.Context) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	out := make([]domain.Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *MemoryStore) WriteAt(ctx context.Context, position int, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	idx := domain.IndexOf(position)
	if idx < 0 || idx >= len(s.rows) {
		return fmt.Errorf("%w: %d", apperrors.ErrInvalidPosition, position)
	}
	s.rows[idx] = row.Clone()
	s.Writes = append(s.Writes, position)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	s.rows = append(s.rows, row.Clone())
	s.Appends++
	return nil
}

func (s *MemoryStore) EnsureHeader(ctx context.Context, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if s.header == nil {
		s.header = append([]string(nil), columns...)
	}
	return nil
}

// Header returns the stored header row.
func (s *MemoryStore) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}

// Mutations returns the number of writes and appends received.
func (s *MemoryStore) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes) + s.Appends
}
