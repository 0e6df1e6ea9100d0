package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

func TestRollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := db.SeedUser("owner@example.com", "Owner")
	gigs := db.Gigs()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	g := &models.Gig{ID: uuid.New(), OwnerID: u.ID, Name: "n", Description: "d", Price: 10}
	require.NoError(t, gigs.CreateTx(ctx, tx, g))
	_, err = db.Ledger().AddTx(ctx, tx, u.ID, 50)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	_, err = gigs.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	bal, err := db.Ledger().GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
	assert.Equal(t, 0, db.Commits())
}

func TestWriteOutsideTxSurvivesConcurrentRollback(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.SeedUser("owner@example.com", "Owner")

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = db.Ledger().AddTx(ctx, tx, owner.ID, 50)
	require.NoError(t, err)

	seeded := make(chan *models.User)
	go func() { seeded <- db.SeedUser("late@example.com", "Late") }()

	select {
	case <-seeded:
		t.Fatal("write outside tx ran while a tx was open")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, tx.Rollback(ctx))
	late := <-seeded

	got, err := db.Users().GetByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, "late@example.com", got.Email)
	bal, err := db.Ledger().GetBalance(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestCommitThenRollbackIsNoop(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := db.SeedUser("a@example.com", "A")

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = db.Ledger().AddTx(ctx, tx, u.ID, 7)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	bal, _ := db.Ledger().GetBalance(ctx, u.ID)
	assert.Equal(t, int64(7), bal)
	assert.Equal(t, 1, db.Commits())
}

func TestInjectedCommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := db.SeedUser("a@example.com", "A")
	boom := errors.New("disk full")
	db.FailOn("commit", boom)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = db.Ledger().AddTx(ctx, tx, u.ID, 7)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.Commit(ctx), boom)

	bal, _ := db.Ledger().GetBalance(ctx, u.ID)
	assert.Equal(t, int64(0), bal)
}

func TestProposalConstraints(t *testing.T) {
	ctx := context.Background()
	db := New()
	owner := db.SeedUser("o@example.com", "O")
	w1 := db.SeedUser("w1@example.com", "W1")
	w2 := db.SeedUser("w2@example.com", "W2")
	props := db.Proposals()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	g := &models.Gig{ID: uuid.New(), OwnerID: owner.ID, Name: "n", Description: "d", Price: 10}
	require.NoError(t, db.Gigs().CreateTx(ctx, tx, g))

	p1 := &models.Proposal{ID: uuid.New(), GigID: g.ID, ProposerID: w1.ID, Text: "one"}
	p2 := &models.Proposal{ID: uuid.New(), GigID: g.ID, ProposerID: w2.ID, Text: "two"}
	require.NoError(t, props.CreateTx(ctx, tx, p1))
	require.NoError(t, props.CreateTx(ctx, tx, p2))

	dup := &models.Proposal{ID: uuid.New(), GigID: g.ID, ProposerID: w1.ID, Text: "again"}
	assert.ErrorIs(t, props.CreateTx(ctx, tx, dup), apperr.ErrConflict)

	ok, err := props.TransitionStatusTx(ctx, tx, p1.ID, g.ID, models.ProposalStatusOpen, models.ProposalStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = props.TransitionStatusTx(ctx, tx, p2.ID, g.ID, models.ProposalStatusOpen, models.ProposalStatusAccepted)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	ok, err = props.TransitionStatusTx(ctx, tx, p2.ID, uuid.New(), models.ProposalStatusOpen, models.ProposalStatusRejected)
	require.NoError(t, err)
	assert.False(t, ok, "transition is scoped by gig")

	open, err := props.ListOpenForGig(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "W2", open[0].Proposer.Name)
}

func TestLedgerReconcile(t *testing.T) {
	ctx := context.Background()
	db := New()
	u := db.SeedUser("a@example.com", "A")
	ledger := db.Ledger()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	bal, err := ledger.AddTx(ctx, tx, u.ID, 30)
	require.NoError(t, err)
	require.NoError(t, ledger.InsertEntryTx(ctx, tx, &models.LedgerEntry{
		ID: uuid.New(), UserID: u.ID, Kind: models.LedgerKindTopUp, Amount: 30, BalanceAfter: bal,
	}))
	require.NoError(t, tx.Commit(ctx))

	rec, err := ledger.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())

	db.CorruptBalance(u.ID, 31)
	bad, err := ledger.ListImbalances(ctx)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, int64(31), bad[0].Balance)
	assert.Equal(t, int64(30), bad[0].LedgerSum)
}
