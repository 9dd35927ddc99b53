package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/koopa0/drawboard/internal/snapshot"
	"github.com/koopa0/drawboard/internal/snapshot/migrations"
)

// TestRedis_RoundTrip 測試 Redis 後端往返（需要 Docker）
func TestRedis_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	store, err := snapshot.NewRedis(ctx, client)
	require.NoError(t, err)

	roundTrip(t, store)

	_, err = store.Load(ctx, "nope")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}

// TestPostgres_RoundTrip 測試 Postgres 後端往返（需要 Docker）
func TestPostgres_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("drawboard"),
		tcpostgres.WithUsername("drawboard"),
		tcpostgres.WithPassword("drawboard"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, migrations.Up(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := snapshot.NewPostgres(ctx, pool)
	require.NoError(t, err)

	roundTrip(t, store)

	_, err = store.Load(ctx, "nope")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}
