package metrics

import (
	"context"
	"time"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/ports"
)

// InstrumentedStore records latency and failures of every call to the
// wrapped store.
type InstrumentedStore struct {
	next    ports.TabularStore
	backend string
	metrics *Metrics
}

var _ ports.TabularStore = (*InstrumentedStore)(nil)
var _ ports.StorePinger = (*InstrumentedStore)(nil)

func NewInstrumentedStore(next ports.TabularStore, backend string, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend, metrics: m}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.storeDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.storeErrors.WithLabelValues(s.backend, op).Inc()
	}
}

func (s *InstrumentedStore) ReadAll(ctx context.Context) (rows []domain.Row, err error) {
	defer func(start time.Time) { s.observe("read", start, err) }(time.Now())
	return s.next.ReadAll(ctx)
}

func (s *InstrumentedStore) WriteAt(ctx context.Context, position int, row domain.Row) (err error) {
	defer func(start time.Time) { s.observe("write", start, err) }(time.Now())
	return s.next.WriteAt(ctx, position, row)
}

func (s *InstrumentedStore) Append(ctx context.Context, row domain.Row) (err error) {
	defer func(start time.Time) { s.observe("append", start, err) }(time.Now())
	return s.next.Append(ctx, row)
}

func (s *InstrumentedStore) EnsureHeader(ctx context.Context, columns []string) (err error) {
	defer func(start time.Time) { s.observe("header", start, err) }(time.Now())
	return s.next.EnsureHeader(ctx, columns)
}

// Ping forwards to the wrapped store when it supports health probes.
func (s *InstrumentedStore) Ping(ctx context.Context) (err error) {
	pinger, ok := s.next.(ports.StorePinger)
	if !ok {
		return nil
	}
	defer func(start time.Time) { s.observe("ping", start, err) }(time.Now())
	return pinger.Ping(ctx)
}

// Close releases the wrapped store when it holds resources.
func (s *InstrumentedStore) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
