package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// postgresURL builds the test database URL from POSTGRES_* variables. Tests
// are skipped when POSTGRES_HOST is unset.
func postgresURL(t *testing.T) string {
	t.Helper()
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		t.Skip("POSTGRES_HOST not set")
	}
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		get("POSTGRES_USER", "postgres"),
		get("POSTGRES_PASSWORD", "postgres"),
		host,
		get("POSTGRES_PORT", "5432"),
		get("POSTGRES_DB", "maker_orchestrator"),
	)
}

func TestPostgresStore(t *testing.T) {
	url := postgresURL(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, NewPostgresStore(pool).EnsureSchema(ctx))

	runContract(t, func(t *testing.T, clock *fakeClock) Store {
		return NewPostgresStore(pool).WithClock(clock.Now)
	})
}
