// Package store builds the configured tabular store and its decorators.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/csvfile"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/postgres"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/rediscache"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/sheets"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/sqlite"
	"github.com/lorrc/ticket-tally/internal/adapters/secondary/xlsx"
	"github.com/lorrc/ticket-tally/internal/config"
	"github.com/lorrc/ticket-tally/internal/core/ports"
	"github.com/lorrc/ticket-tally/internal/infrastructure/metrics"
)

// Store is a tabular store that can be probed and released.
type Store interface {
	ports.TabularStore
	ports.StorePinger
	io.Closer
}

// Open constructs the backend named by cfg.Store.Backend. When m is non-nil
// the backend is instrumented; when caching is enabled reads go through Redis.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var s ports.TabularStore = base
	if m != nil {
		s = metrics.NewInstrumentedStore(base, cfg.Store.Backend, m)
	}

	if cfg.Cache.Enabled {
		opt, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			_ = closeStore(base)
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache will fall through", "error", err)
		}
		s = rediscache.New(s, rdb, rediscache.Options{TTL: cfg.Cache.TTL, Prefix: cfg.Cache.Prefix}, logger)
	}

	return wrap(s), nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.TabularStore, error) {
	switch cfg.Store.Backend {
	case config.BackendCSV:
		return csvfile.New(cfg.Store.Path, logger)

	case config.BackendXLSX:
		return xlsx.New(cfg.Store.Path, cfg.Store.Sheet, logger)

	case config.BackendSheets:
		return sheets.New(ctx, cfg.Sheets.SpreadsheetID, cfg.Store.Sheet, logger,
			option.WithCredentialsFile(cfg.Sheets.CredentialsFile))

	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection established")
		return postgres.NewTallyStore(pool, logger), nil

	case config.BackendSQLite:
		return sqlite.Open(cfg.Store.Path, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// handle adds no-op Ping and Close to stores that lack them.
type handle struct {
	ports.TabularStore
}

func wrap(s ports.TabularStore) Store {
	if full, ok := s.(Store); ok {
		return full
	}
	return handle{s}
}

func (h handle) Ping(ctx context.Context) error {
	if p, ok := h.TabularStore.(ports.StorePinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (h handle) Close() error {
	return closeStore(h.TabularStore)
}

func closeStore(s ports.TabularStore) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
