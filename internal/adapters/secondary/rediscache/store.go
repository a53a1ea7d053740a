package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

// Store serves ReadAll from Redis. Snapshots are keyed by a revision counter
// that every mutation increments, so a snapshot taken before a write is never
// read after it. Redis failures fall through to the wrapped store.
type Store struct {
	next   ports.TabularStore
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ ports.TabularStore = (*Store)(nil)
var _ ports.StorePinger = (*Store)(nil)

// Options configures the cache.
type Options struct {
	TTL    time.Duration
	Prefix string
}

func New(next ports.TabularStore, rdb redis.UniversalClient, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Prefix == "" {
		opts.Prefix = "ticket-tally"
	}
	return &Store{next: next, rdb: rdb, ttl: opts.TTL, prefix: opts.Prefix, logger: logger}
}

func (s *Store) revisionKey() string {
	return s.prefix + ":rev"
}

func (s *Store) rowsKey(rev int64) string {
	return fmt.Sprintf("%s:rows:%d", s.prefix, rev)
}

func (s *Store) ReadAll(ctx context.Context) ([]domain.Row, error) {
	rev, err := s.rdb.Get(ctx, s.revisionKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "cache unavailable, reading store", "error", err)
		return s.next.ReadAll(ctx)
	}

	key := s.rowsKey(rev)
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var rows []domain.Row
		if err := json.Unmarshal(data, &rows); err == nil {
			return rows, nil
		}
		s.logger.WarnContext(ctx, "discarding corrupt cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}

	rows, err := s.next.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
	}
	return rows, nil
}

func (s *Store) WriteAt(ctx context.Context, position int, row domain.Row) error {
	defer s.invalidate(ctx)
	return s.next.WriteAt(ctx, position, row)
}

func (s *Store) Append(ctx context.Context, row domain.Row) error {
	defer s.invalidate(ctx)
	return s.next.Append(ctx, row)
}

func (s *Store) EnsureHeader(ctx context.Context, columns []string) error {
	defer s.invalidate(ctx)
	return s.next.EnsureHeader(ctx, columns)
}

// invalidate bumps the revision even when the write failed, since a remote
// store may have applied a write whose response was lost.
func (s *Store) invalidate(ctx context.Context) {
	if err := s.rdb.Incr(ctx, s.revisionKey()).Err(); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed", "error", err)
	}
}

// Ping probes the wrapped store. The cache is optional and not probed.
func (s *Store) Ping(ctx context.Context) error {
	if pinger, ok := s.next.(ports.StorePinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Close closes the Redis client and the wrapped store.
func (s *Store) Close() error {
	err := s.rdb.Close()
	if c, ok := s.next.(interface{ Close() error }); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
