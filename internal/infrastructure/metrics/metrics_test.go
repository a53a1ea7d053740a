package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/mocks"
	"github.com/lorrc/ticket-tally/internal/infrastructure/metrics"
)

func TestMetrics_Submissions(t *testing.T) {
	m := metrics.New()

	m.ObserveSubmission("append")
	m.ObserveSubmission("update")
	m.ObserveSubmission("update")
	m.ObserveValidationFailure()

	body := scrape(t, m)
	assert.Contains(t, body, `ticket_tally_submissions_total{action="append"} 1`)
	assert.Contains(t, body, `ticket_tally_submissions_total{action="update"} 2`)
	assert.Contains(t, body, `ticket_tally_validation_failures_total 1`)
}

func TestInstrumentedStore_RecordsOperations(t *testing.T) {
	m := metrics.New()
	inner := mocks.NewMemoryStore()
	store := metrics.NewInstrumentedStore(inner, "memory", m)
	ctx := context.Background()

	require.NoError(t, store.EnsureHeader(ctx, domain.Columns()))
	require.NoError(t, store.Append(ctx, domain.ZeroCounts().Row("2024-01-01")))
	_, err := store.ReadAll(ctx)
	require.NoError(t, err)

	inner.FailWith = errors.New("disk gone")
	_, err = store.ReadAll(ctx)
	require.Error(t, err)

	series, err := testutil.GatherAndCount(m.Registry(), "ticket_tally_store_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, series) // header, append, read
	assert.Contains(t, scrape(t, m), `ticket_tally_store_operation_errors_total{backend="memory",op="read"} 1`)
}

func TestInstrumentedStore_PingWithoutPinger(t *testing.T) {
	store := metrics.NewInstrumentedStore(mocks.NewMemoryStore(), "memory", metrics.New())

	assert.NoError(t, store.Ping(context.Background()))
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
