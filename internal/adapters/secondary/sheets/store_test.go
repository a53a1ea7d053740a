package sheets_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/sheets"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

// fakeSheets serves the subset of the Sheets values API the store uses.
type fakeSheets struct {
	mu    sync.Mutex
	grid  [][]interface{}
	calls []string
	fail  bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	if f.fail {
		http.Error(w, `{"error":{"code":503,"message":"backend error"}}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"majorDimension": "ROWS", "values": f.grid})

	case r.Method == http.MethodPut:
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		row := rowOf(r.URL.Path)
		for len(f.grid) < row {
			f.grid = append(f.grid, []interface{}{})
		}
		f.grid[row-1] = body.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.grid = append(f.grid, body.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{})

	default:
		http.NotFound(w, r)
	}
}

// rowOf extracts N from a path ending in !AN.
func rowOf(path string) int {
	idx := strings.LastIndex(path, "!A")
	n, _ := strconv.Atoi(path[idx+2:])
	return n
}

func newStore(t *testing.T) (*sheets.Store, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := sheets.New(context.Background(), "sheet-id", "Sheet1", nil,
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return s, fake
}

func TestStore_HeaderAndUpsert(t *testing.T) {
	s, fake := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))
	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))
	require.NoError(t, s.Append(ctx, domain.ZeroCounts().Row("2024-01-01")))

	counts := domain.ZeroCounts().Merge(domain.Counts{domain.CategoryBank: 7})
	require.NoError(t, s.WriteAt(ctx, 2, counts.Row("2024-01-01")))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0][domain.CategoryBank])
	assert.Equal(t, "2024-01-01", rows[0].Date())

	puts := 0
	for _, c := range fake.calls {
		if strings.HasPrefix(c, "PUT") {
			puts++
		}
	}
	assert.Equal(t, 2, puts, "header once, row once")
}

func TestStore_WriteAtOutOfRange(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureHeader(ctx, domain.Columns()))

	err := s.WriteAt(ctx, 2, domain.ZeroCounts().Row("2024-01-01"))

	assert.ErrorIs(t, err, apperrors.ErrInvalidPosition)
}

func TestStore_BackendFailure(t *testing.T) {
	s, fake := newStore(t)
	fake.mu.Lock()
	fake.fail = true
	fake.mu.Unlock()

	_, err := s.ReadAll(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_FollowsStoredHeaderOrder(t *testing.T) {
	s, fake := newStore(t)
	ctx := context.Background()

	cols := domain.Columns()
	cols[1], cols[2] = cols[2], cols[1]
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	fake.grid = [][]interface{}{header}

	counts := domain.ZeroCounts().Merge(domain.Counts{cols[1]: 3, cols[2]: 9})
	require.NoError(t, s.Append(ctx, counts.Row("2024-01-01")))

	fake.mu.Lock()
	appended := fake.grid[1]
	fake.mu.Unlock()
	require.Len(t, appended, len(cols))
	assert.Equal(t, "2024-01-01", appended[0])
	assert.Equal(t, "3", appended[1], "counts are sent as text in header order")
	assert.Equal(t, "9", appended[2])

	counts = counts.Merge(domain.Counts{cols[1]: 4})
	require.NoError(t, s.WriteAt(ctx, 2, counts.Row("2024-01-01")))

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4", rows[0][cols[1]])
	assert.Equal(t, "9", rows[0][cols[2]])
}
