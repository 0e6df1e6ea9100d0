// Package memstore is an in-memory implementation of every store the
// services use. Transactions are serialized by a single lock and roll back
// by restoring a snapshot, so workflows can be exercised without Postgres.
// Writes made outside a transaction wait for the running one to finish.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type snapshot struct {
	users     map[uuid.UUID]models.User
	entries   []models.LedgerEntry
	gigs      map[uuid.UUID]models.Gig
	proposals map[uuid.UUID]models.Proposal
	cards     map[uuid.UUID]models.CreditCard
}

func (s snapshot) clone() snapshot {
	out := snapshot{
		users:     make(map[uuid.UUID]models.User, len(s.users)),
		entries:   append([]models.LedgerEntry(nil), s.entries...),
		gigs:      make(map[uuid.UUID]models.Gig, len(s.gigs)),
		proposals: make(map[uuid.UUID]models.Proposal, len(s.proposals)),
		cards:     make(map[uuid.UUID]models.CreditCard, len(s.cards)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.gigs {
		out.gigs[k] = v
	}
	for k, v := range s.proposals {
		out.proposals[k] = v
	}
	for k, v := range s.cards {
		out.cards[k] = v
	}
	return out
}

// DB holds all tables. The zero value is not usable; call New.
type DB struct {
	txMu sync.Mutex

	mu       sync.Mutex
	data     snapshot
	failures map[string]error
	tick     time.Time
	commits  int
}

func New() *DB {
	return &DB{
		data: snapshot{
			users:     map[uuid.UUID]models.User{},
			gigs:      map[uuid.UUID]models.Gig{},
			proposals: map[uuid.UUID]models.Proposal{},
			cards:     map[uuid.UUID]models.CreditCard{},
		},
		failures: map[string]error{},
		tick:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// now returns strictly increasing timestamps so orderings are stable.
// Callers hold mu.
func (db *DB) now() time.Time {
	db.tick = db.tick.Add(time.Millisecond)
	return db.tick
}

// FailOn makes the next call of op return err. Operation names have the
// form "<table>.<Method>", e.g. "gigs.TransitionStatusTx"; "commit" fails
// the next commit.
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = err
}

// fail consumes an injected failure. Callers hold mu.
func (db *DB) fail(op string) error {
	if err, ok := db.failures[op]; ok {
		delete(db.failures, op)
		return err
	}
	return nil
}

// Commits reports how many transactions committed.
func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// autocommit locks the tables for a write made outside any transaction. It
// waits for a running transaction to end so that a rollback cannot restore
// a snapshot that predates the write.
func (db *DB) autocommit() (unlock func()) {
	db.txMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.txMu.Unlock()
	}
}

// Begin starts a transaction, waiting for any running one to finish.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.txMu.Lock()
	if err := ctx.Err(); err != nil {
		db.txMu.Unlock()
		return nil, err
	}
	db.mu.Lock()
	snap := db.data.clone()
	db.mu.Unlock()
	return &Tx{db: db, snap: snap}, nil
}

// Tx satisfies pgx.Tx. Only Commit and Rollback are implemented; the stores
// ignore the tx argument because Begin already serializes writers.
type Tx struct {
	pgx.Tx
	db   *DB
	snap snapshot
	done bool
}

func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.db.txMu.Unlock()

	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if err := t.db.fail("commit"); err != nil {
		t.db.data = t.snap
		return err
	}
	t.db.commits++
	return nil
}

func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.db.txMu.Unlock()

	t.db.mu.Lock()
	t.db.data = t.snap
	t.db.mu.Unlock()
	return nil
}

// SeedUser inserts a user with a zero balance.
func (db *DB) SeedUser(email, name string) *models.User {
	defer db.autocommit()()
	now := db.now()
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: "x",
		Skills:       []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	db.data.users[u.ID] = u
	return &u
}

// CorruptBalance overwrites a balance without writing a ledger entry.
func (db *DB) CorruptBalance(userID uuid.UUID, credits int64) {
	defer db.autocommit()()
	u := db.data.users[userID]
	u.Credits = credits
	db.data.users[userID] = u
}

// Entries returns every ledger entry of the user, oldest first.
func (db *DB) Entries(userID uuid.UUID) []models.LedgerEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range db.data.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (db *DB) Ledger() *LedgerStore { return &LedgerStore{db: db} }
func (db *DB) Users() *UserStore { return &UserStore{db: db} }
func (db *DB) Gigs() *GigStore { return &GigStore{db: db} }
func (db *DB) Proposals() *ProposalStore { return &ProposalStore{db: db} }
func (db *DB) Cards() *CreditCardStore { return &CreditCardStore{db: db} }

func conflict(constraint string) error {
	return fmt.Errorf("%w: %s", apperr.ErrConflict, constraint)
}

// ForceGigStatus overwrites a gig's status, bypassing every guard.
func (db *DB) ForceGigStatus(id uuid.UUID, status string) {
	defer db.autocommit()()
	g := db.data.gigs[id]
	g.Status = status
	db.data.gigs[id] = g
}

// ForceProposalStatus overwrites a proposal's status, bypassing every guard.
func (db *DB) ForceProposalStatus(id uuid.UUID, status string) {
	defer db.autocommit()()
	p := db.data.proposals[id]
	p.Status = status
	db.data.proposals[id] = p
}
