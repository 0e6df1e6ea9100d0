package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/database/dbtest"
	"github.com/nivekithan/gig-marketplace/internal/ledger"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

func TestRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	pool := dbtest.Pool(t)
	userID := dbtest.SeedUser(t, pool, 100)
	svc := ledger.NewService(pool, ledger.NewRepository(pool), nil, nil)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
				_, err := svc.Debit(ctx, tx, userID, 60, models.LedgerKindWithdrawal, nil)
				return err
			})
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)
	}
	assert.Equal(t, 1, succeeded)

	bal, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal)

	entries, err := svc.History(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-60), entries[0].Amount)
	assert.Equal(t, int64(40), entries[0].BalanceAfter)

	rec, err := svc.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(-60), rec.LedgerSum)
}

func TestRepository_DeductTxIsConditional(t *testing.T) {
	pool := dbtest.Pool(t)
	userID := dbtest.SeedUser(t, pool, 100)
	repo := ledger.NewRepository(pool)
	ctx := context.Background()

	err := database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := repo.DeductTx(ctx, tx, userID, 150)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientCredits)

	var left int64
	err = database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		left, err = repo.DeductTx(ctx, tx, userID, 100)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestRepository_LockBalanceUnknownUser(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := ledger.NewRepository(pool)
	ctx := context.Background()

	err := database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := repo.LockBalance(ctx, tx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.GetBalance(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepository_RollbackDiscardsEntry(t *testing.T) {
	pool := dbtest.Pool(t)
	userID := dbtest.SeedUser(t, pool, 0)
	svc := ledger.NewService(pool, ledger.NewRepository(pool), nil, nil)
	ctx := context.Background()

	err := database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := svc.Credit(ctx, tx, userID, 25, models.LedgerKindTopUp, nil); err != nil {
			return err
		}
		return apperr.ErrConflict
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	bal, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, bal)
	entries, err := svc.History(ctx, userID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepository_ListImbalances(t *testing.T) {
	pool := dbtest.Pool(t)
	healthy := dbtest.SeedUser(t, pool, 0)
	drifted := dbtest.SeedUser(t, pool, 0)
	repo := ledger.NewRepository(pool)
	svc := ledger.NewService(pool, repo, nil, nil)
	ctx := context.Background()

	_, err := svc.TopUp(ctx, healthy, 30)
	require.NoError(t, err)
	_, err = svc.TopUp(ctx, drifted, 30)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE users SET credits = credits + 5 WHERE id = $1`, drifted)
	require.NoError(t, err)

	list, err := repo.ListImbalances(ctx)
	require.NoError(t, err)
	byUser := map[uuid.UUID]models.Reconciliation{}
	for _, rec := range list {
		byUser[rec.UserID] = rec
	}
	assert.NotContains(t, byUser, healthy)
	require.Contains(t, byUser, drifted)
	assert.Equal(t, int64(35), byUser[drifted].Balance)
	assert.Equal(t, int64(30), byUser[drifted].LedgerSum)
}
