package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type ProposalStore struct {
	db *DB
}

func (s *ProposalStore) CreateTx(_ context.Context, _ pgx.Tx, p *models.Proposal) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("proposals.CreateTx"); err != nil {
		return err
	}
	for _, existing := range s.db.data.proposals {
		if existing.GigID == p.GigID && existing.ProposerID == p.ProposerID {
			return conflict("proposals_gig_proposer_key")
		}
	}
	p.Status = models.ProposalStatusOpen
	p.CreatedAt = s.db.now()
	p.UpdatedAt = p.CreatedAt
	s.db.data.proposals[p.ID] = *p
	return nil
}

func (s *ProposalStore) get(id uuid.UUID) (*models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.data.proposals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (s *ProposalStore) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	return s.get(id)
}

func (s *ProposalStore) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Proposal, error) {
	return s.get(id)
}

func (s *ProposalStore) byGigAndProposer(gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.data.proposals {
		if p.GigID == gigID && p.ProposerID == proposerID {
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *ProposalStore) GetByGigAndProposer(_ context.Context, gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	return s.byGigAndProposer(gigID, proposerID)
}

func (s *ProposalStore) GetByGigAndProposerForUpdate(_ context.Context, _ pgx.Tx, gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	return s.byGigAndProposer(gigID, proposerID)
}

func (s *ProposalStore) UpdateTextTx(_ context.Context, _ pgx.Tx, id uuid.UUID, text string) (*models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("proposals.UpdateTextTx"); err != nil {
		return nil, err
	}
	p, ok := s.db.data.proposals[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	p.Text = text
	p.UpdatedAt = s.db.now()
	s.db.data.proposals[id] = p
	return &p, nil
}

func (s *ProposalStore) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("proposals.DeleteTx"); err != nil {
		return err
	}
	if _, ok := s.db.data.proposals[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.db.data.proposals, id)
	return nil
}

func (s *ProposalStore) DeleteByGigTx(_ context.Context, _ pgx.Tx, gigID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("proposals.DeleteByGigTx"); err != nil {
		return err
	}
	for id, p := range s.db.data.proposals {
		if p.GigID == gigID {
			delete(s.db.data.proposals, id)
		}
	}
	return nil
}

// TransitionStatusTx enforces the one-accepted-per-gig index like Postgres does.
func (s *ProposalStore) TransitionStatusTx(_ context.Context, _ pgx.Tx, id, gigID uuid.UUID, from, to string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail("proposals.TransitionStatusTx"); err != nil {
		return false, err
	}
	p, ok := s.db.data.proposals[id]
	if !ok || p.GigID != gigID || p.Status != from {
		return false, nil
	}
	if to == models.ProposalStatusAccepted {
		for otherID, other := range s.db.data.proposals {
			if otherID != id && other.GigID == gigID && other.Status == models.ProposalStatusAccepted {
				return false, conflict("proposals_one_accepted_per_gig")
			}
		}
	}
	p.Status = to
	p.UpdatedAt = s.db.now()
	s.db.data.proposals[id] = p
	return true, nil
}

// forGig returns the gig's proposals in status, oldest first. Callers hold mu.
func (s *ProposalStore) forGig(gigID uuid.UUID, status string) []models.Proposal {
	var out []models.Proposal
	for _, p := range s.db.data.proposals {
		if p.GigID == gigID && p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *ProposalStore) ListAcceptedTx(_ context.Context, _ pgx.Tx, gigID uuid.UUID) ([]*models.Proposal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.Proposal
	for _, p := range s.forGig(gigID, models.ProposalStatusAccepted) {
		out = append(out, &p)
	}
	return out, nil
}

// withProposer joins p with its author. Callers hold mu.
func (s *ProposalStore) withProposer(p models.Proposal) *models.ProposalWithProposer {
	u := s.db.data.users[p.ProposerID]
	return &models.ProposalWithProposer{Proposal: p, Proposer: u.Public()}
}

func (s *ProposalStore) ListOpenForGig(_ context.Context, gigID uuid.UUID) ([]*models.ProposalWithProposer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.ProposalWithProposer
	for _, p := range s.forGig(gigID, models.ProposalStatusOpen) {
		out = append(out, s.withProposer(p))
	}
	return out, nil
}

func (s *ProposalStore) GetAcceptedForGig(_ context.Context, gigID uuid.UUID) (*models.ProposalWithProposer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	accepted := s.forGig(gigID, models.ProposalStatusAccepted)
	if len(accepted) == 0 {
		return nil, apperr.ErrNotFound
	}
	return s.withProposer(accepted[0]), nil
}

func (s *ProposalStore) CountForGig(_ context.Context, gigID uuid.UUID) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, p := range s.db.data.proposals {
		if p.GigID == gigID {
			n++
		}
	}
	return n, nil
}
