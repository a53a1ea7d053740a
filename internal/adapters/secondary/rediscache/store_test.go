package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lorrc/ticket-tally/internal/adapters/secondary/rediscache"
	"github.com/lorrc/ticket-tally/internal/core/domain"
	"github.com/lorrc/ticket-tally/internal/core/mocks"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// countingStore counts ReadAll calls that reach the underlying store.
type countingStore struct {
	*mocks.MemoryStore
	reads int
}

func (c *countingStore) ReadAll(ctx context.Context) ([]domain.Row, error) {
	c.reads++
	return c.MemoryStore.ReadAll(ctx)
}

func TestStore_ServesSnapshotUntilWrite(t *testing.T) {
	rdb := startRedis(t)
	inner := &countingStore{MemoryStore: mocks.NewMemoryStore(domain.ZeroCounts().Row("2024-01-01"))}
	store := rediscache.New(inner, rdb, rediscache.Options{Prefix: t.Name()}, nil)
	ctx := context.Background()

	first, err := store.ReadAll(ctx)
	require.NoError(t, err)
	second, err := store.ReadAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.reads, "second read served from cache")

	require.NoError(t, store.Append(ctx, domain.ZeroCounts().Row("2024-01-02")))

	third, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, inner.reads, "write invalidates the snapshot")
}

func TestStore_FallsThroughWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	inner := mocks.NewMemoryStore(domain.ZeroCounts().Row("2024-01-01"))
	store := rediscache.New(inner, rdb, rediscache.Options{}, nil)
	ctx := context.Background()

	rows, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, store.WriteAt(ctx, 2, domain.ZeroCounts().Row("2024-01-01")))
	assert.Equal(t, []int{2}, inner.Writes)
}
