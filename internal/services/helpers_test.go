package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/ledger"
	"github.com/nivekithan/gig-marketplace/internal/memstore"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/safety"
)

var (
	_ GigStore      = (*memstore.GigStore)(nil)
	_ ProposalStore = (*memstore.ProposalStore)(nil)
	_ Ledger        = (*ledger.Service)(nil)
)

type env struct {
	db        *memstore.DB
	ledger    *ledger.Service
	engine    *SettlementEngine
	proposals *ProposalWorkflow
	rep       *safety.StaticReputation
	embeds    []uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{db: memstore.New(), rep: &safety.StaticReputation{Harmful: map[string]bool{}}}
	e.ledger = ledger.NewService(e.db, e.db.Ledger(), nil, nil)
	checker := safety.NewChecker(e.rep, nil)
	embed := func(_ context.Context, _ pgx.Tx, args execution.EmbedGigArgs) error {
		e.embeds = append(e.embeds, args.GigID)
		return nil
	}
	e.engine = NewSettlementEngine(e.db, e.ledger, e.db.Gigs(), e.db.Proposals(), checker, embed, nil)
	e.proposals = NewProposalWorkflow(e.db, e.db.Gigs(), e.db.Proposals(), checker, nil)
	return e
}

// user seeds a user funded with credits through a top-up.
func (e *env) user(t *testing.T, name string, credits int64) uuid.UUID {
	t.Helper()
	u := e.db.SeedUser(strings.ToLower(name)+"@example.com", name)
	if credits > 0 {
		_, err := e.ledger.TopUp(context.Background(), u.ID, credits)
		require.NoError(t, err)
	}
	return u.ID
}

func (e *env) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	bal, err := e.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return bal
}

func (e *env) assertConsistent(t *testing.T, userIDs ...uuid.UUID) {
	t.Helper()
	for _, id := range userIDs {
		rec, err := e.ledger.Reconcile(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, rec.Balance, rec.LedgerSum, "user %s balance != ledger sum", id)
	}
}

func (e *env) gig(t *testing.T, ownerID uuid.UUID, price int64) *models.Gig {
	t.Helper()
	g, err := e.engine.CreateGigWithEscrow(context.Background(), ownerID, GigInput{
		Name:        "Landing page",
		Description: "Build a landing page for our product launch.",
		Price:       price,
		Skills:      []string{"React", "Typescript"},
	})
	require.NoError(t, err)
	return g
}

func (e *env) getGig(t *testing.T, id uuid.UUID) *models.Gig {
	t.Helper()
	g, err := e.db.Gigs().GetByID(context.Background(), id)
	require.NoError(t, err)
	return g
}

func (e *env) getProposal(t *testing.T, id uuid.UUID) *models.Proposal {
	t.Helper()
	p, err := e.db.Proposals().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

var proposalText = strings.Repeat("I have shipped a dozen React landing pages and can start today. ", 3)

func (e *env) propose(t *testing.T, gigID, proposerID uuid.UUID) *models.Proposal {
	t.Helper()
	p, err := e.proposals.Submit(context.Background(), gigID, proposerID, proposalText)
	require.NoError(t, err)
	return p
}

// assigned returns a gig whose proposal by a fresh worker was accepted.
func (e *env) assigned(t *testing.T, ownerID uuid.UUID, price int64) (*models.Gig, uuid.UUID) {
	t.Helper()
	g := e.gig(t, ownerID, price)
	worker := e.user(t, "Worker"+uuid.NewString()[:8], 0)
	p := e.propose(t, g.ID, worker)
	_, err := e.proposals.Accept(context.Background(), ownerID, g.ID, p.ID)
	require.NoError(t, err)
	return g, worker
}
