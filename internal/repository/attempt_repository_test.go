package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// TestAttemptRepositoryContract runs against a migrated, disposable database
// named by POSTGRES_TEST_URL. The attempts table is truncated between cases.
func TestAttemptRepositoryContract(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(context.Background()))

	runAttemptStoreContract(t, func(t *testing.T) attemptStore {
		_, err := pool.Exec(context.Background(), `TRUNCATE attempts`)
		require.NoError(t, err)
		return NewAttemptRepository(pool)
	})
}
