package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type GigStore struct {
	db *DB
}

func (s *GigStore) CreateTx(_ context.Context, _ pgx.Tx, g *models.Gig) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("gigs.CreateTx"); err != nil {
		return err
	}
	if _, ok := s.db.data.gigs[g.ID]; ok {
		return conflict("gigs_pkey")
	}
	if g.Skills == nil {
		g.Skills = []string{}
	}
	g.Status = models.GigStatusCreated
	g.CreatedAt = s.db.now()
	g.UpdatedAt = g.CreatedAt
	s.db.data.gigs[g.ID] = *g
	return nil
}

func (s *GigStore) get(id uuid.UUID) (*models.Gig, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.data.gigs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &g, nil
}

func (s *GigStore) GetByID(_ context.Context, id uuid.UUID) (*models.Gig, error) {
	return s.get(id)
}

func (s *GigStore) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Gig, error) {
	return s.get(id)
}

func (s *GigStore) UpdateDetailsTx(_ context.Context, _ pgx.Tx, id uuid.UUID, name, description string) (*models.Gig, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("gigs.UpdateDetailsTx"); err != nil {
		return nil, err
	}
	g, ok := s.db.data.gigs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	g.Name, g.Description = name, description
	g.UpdatedAt = s.db.now()
	s.db.data.gigs[id] = g
	return &g, nil
}

func (s *GigStore) TransitionStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("gigs.TransitionStatusTx"); err != nil {
		return false, err
	}
	g, ok := s.db.data.gigs[id]
	if !ok || g.Status != from {
		return false, nil
	}
	g.Status = to
	g.UpdatedAt = s.db.now()
	s.db.data.gigs[id] = g
	return true, nil
}

func (s *GigStore) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("gigs.DeleteTx"); err != nil {
		return err
	}
	if _, ok := s.db.data.gigs[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.db.data.gigs, id)
	return nil
}

func (s *GigStore) SetEmbedding(_ context.Context, id uuid.UUID, embedding []float64) error {
	defer s.db.autocommit()()
	g, ok := s.db.data.gigs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	g.Embedding = embedding
	s.db.data.gigs[id] = g
	return nil
}

// filter returns matching gigs, newest first.
func (s *GigStore) filter(keep func(g models.Gig) bool) []*models.Gig {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []*models.Gig{}
	for _, g := range s.db.data.gigs {
		if keep(g) {
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *GigStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.Gig, error) {
	return s.filter(func(g models.Gig) bool { return g.OwnerID == ownerID }), nil
}

func (s *GigStore) ListLatest(_ context.Context, userID uuid.UUID, limit int) ([]*models.Gig, error) {
	out := s.filter(func(g models.Gig) bool {
		return g.Status == models.GigStatusCreated && g.OwnerID != userID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// proposalGigs returns the ids of gigs userID has a proposal on, optionally
// only accepted ones.
func (s *GigStore) proposalGigs(userID uuid.UUID, acceptedOnly bool) map[uuid.UUID]bool {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ids := map[uuid.UUID]bool{}
	for _, p := range s.db.data.proposals {
		if p.ProposerID != userID {
			continue
		}
		if acceptedOnly && p.Status != models.ProposalStatusAccepted {
			continue
		}
		ids[p.GigID] = true
	}
	return ids
}

func (s *GigStore) ListProposedBy(_ context.Context, userID uuid.UUID) ([]*models.Gig, error) {
	ids := s.proposalGigs(userID, false)
	return s.filter(func(g models.Gig) bool { return ids[g.ID] }), nil
}

func (s *GigStore) ListAssignedTo(_ context.Context, userID uuid.UUID) ([]*models.Gig, error) {
	ids := s.proposalGigs(userID, true)
	return s.filter(func(g models.Gig) bool { return ids[g.ID] }), nil
}

func (s *GigStore) ListEmbedded(_ context.Context, excludeID uuid.UUID) ([]*models.Gig, error) {
	return s.filter(func(g models.Gig) bool {
		return g.Status == models.GigStatusCreated && g.Embedding != nil && g.ID != excludeID
	}), nil
}
