package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type LedgerStore struct {
	db *DB
}

func (s *LedgerStore) GetBalance(_ context.Context, userID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.data.users[userID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	return u.Credits, nil
}

func (s *LedgerStore) LockBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("users.LockBalance"); err != nil {
		return 0, err
	}
	u, ok := s.db.data.users[userID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	return u.Credits, nil
}

func (s *LedgerStore) DeductTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("users.DeductTx"); err != nil {
		return 0, err
	}
	u, ok := s.db.data.users[userID]
	if !ok || u.Credits < amount {
		return 0, apperr.ErrInsufficientCredits
	}
	u.Credits -= amount
	u.UpdatedAt = s.db.now()
	s.db.data.users[userID] = u
	return u.Credits, nil
}

func (s *LedgerStore) AddTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("users.AddTx"); err != nil {
		return 0, err
	}
	u, ok := s.db.data.users[userID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	u.Credits += amount
	u.UpdatedAt = s.db.now()
	s.db.data.users[userID] = u
	return u.Credits, nil
}

func (s *LedgerStore) InsertEntryTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("ledger_entries.InsertEntryTx"); err != nil {
		return err
	}
	e.CreatedAt = s.db.now()
	s.db.data.entries = append(s.db.data.entries, *e)
	return nil
}

func (s *LedgerStore) ListEntries(_ context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.LedgerEntry
	for _, e := range s.db.data.entries {
		if e.UserID == userID {
			out = append(out, &e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sums returns every user's ledger total. Callers hold mu.
func (s *LedgerStore) sums() map[uuid.UUID]int64 {
	sums := make(map[uuid.UUID]int64, len(s.db.data.users))
	for _, e := range s.db.data.entries {
		sums[e.UserID] += e.Amount
	}
	return sums
}

func (s *LedgerStore) Reconcile(_ context.Context, userID uuid.UUID) (models.Reconciliation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec := models.Reconciliation{UserID: userID}
	u, ok := s.db.data.users[userID]
	if !ok {
		return rec, apperr.ErrNotFound
	}
	rec.Balance = u.Credits
	rec.LedgerSum = s.sums()[userID]
	return rec, nil
}

func (s *LedgerStore) ListImbalances(context.Context) ([]models.Reconciliation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sums := s.sums()
	var out []models.Reconciliation
	for id, u := range s.db.data.users {
		if u.Credits != sums[id] {
			out = append(out, models.Reconciliation{UserID: id, Balance: u.Credits, LedgerSum: sums[id]})
		}
	}
	return out, nil
}
