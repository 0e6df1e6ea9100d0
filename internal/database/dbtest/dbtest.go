// Package dbtest points tests at a real Postgres. Tests using it skip unless
// TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/migrations"
)

const EnvURL = "TEST_DATABASE_URL"

// Pool connects to the test database and applies the schema. The pool is
// closed when the test ends.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set", EnvURL)
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, database.PoolConfig{URL: url, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	require.NoError(t, migrations.Run(sqlDB))
	return pool
}

// SeedUser inserts a user holding credits and removes everything they own
// once the test ends. Rows are keyed by fresh ids so packages can share one
// database.
func SeedUser(t testing.TB, pool *pgxpool.Pool, credits int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, name, password_hash, credits)
		VALUES ($1, $2, 'Test User', 'x', $3)
	`, id, fmt.Sprintf("%s@test.local", id), credits)
	require.NoError(t, err)
	Forget(t, pool, id)
	return id
}

// Forget deletes userID and their rows when the test ends.
func Forget(t testing.TB, pool *pgxpool.Pool, userID uuid.UUID) {
	t.Helper()
	t.Cleanup(func() {
		ctx := context.Background()
		for _, q := range []string{
			`DELETE FROM proposals WHERE proposer_id = $1 OR gig_id IN (SELECT id FROM gigs WHERE owner_id = $1)`,
			`DELETE FROM gigs WHERE owner_id = $1`,
			`DELETE FROM ledger_entries WHERE user_id = $1`,
			`DELETE FROM credit_cards WHERE user_id = $1`,
			`DELETE FROM users WHERE id = $1`,
		} {
			if _, err := pool.Exec(ctx, q, userID); err != nil {
				t.Logf("cleanup user %s: %v", userID, err)
				return
			}
		}
	})
}
