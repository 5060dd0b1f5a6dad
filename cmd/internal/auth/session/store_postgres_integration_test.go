package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

// Integration tests are enabled when VIVAH_TEST_DATABASE_URL is set.
// Unreachable Postgres skips these tests to keep local runs fast.

func mustPGXPool(ctx context.Context, t *testing.T, dbURL string) *pgxpool.Pool {
	t.Helper()

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("parse db url: %v", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		t.Skipf("postgres unreachable: %v", err)
	}
	return pool
}

func TestPostgresStore_Integration(t *testing.T) {
	dbURL := os.Getenv("VIVAH_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("VIVAH_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	pool := mustPGXPool(ctx, t, dbURL)
	defer pool.Close()

	s := NewPostgresStore(pool, "test_"+ulid.Make().String(), nil, nil)
	require.NoError(t, s.Migrate(ctx))
	// Migrate twice: the schema must be idempotent.
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Clear(context.Background()) })

	exerciseStore(t, s)
}
