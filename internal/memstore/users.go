package memstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type UserStore struct {
	db *DB
}

// emailTaken reports whether another user already has email. Callers hold mu.
func (s *UserStore) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range s.db.data.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, u *models.User) error {
	defer s.db.autocommit()()
	if s.emailTaken(u.Email, uuid.Nil) {
		return conflict("users_email_key")
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	u.Credits = 0
	u.CreatedAt = s.db.now()
	u.UpdatedAt = u.CreatedAt
	s.db.data.users[u.ID] = *u
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.data.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *UserStore) UpdateProfile(_ context.Context, id uuid.UUID, name, email string, skills []string) (*models.User, error) {
	defer s.db.autocommit()()
	u, ok := s.db.data.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if s.emailTaken(email, id) {
		return nil, conflict("users_email_key")
	}
	if skills == nil {
		skills = []string{}
	}
	u.Name, u.Email, u.Skills = name, email, skills
	u.UpdatedAt = s.db.now()
	s.db.data.users[id] = u
	return &u, nil
}

type CreditCardStore struct {
	db *DB
}

func (s *CreditCardStore) Upsert(_ context.Context, c *models.CreditCard) error {
	defer s.db.autocommit()()
	now := s.db.now()
	if prev, ok := s.db.data.cards[c.UserID]; ok {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.db.data.cards[c.UserID] = *c
	return nil
}

func (s *CreditCardStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.CreditCard, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.data.cards[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &c, nil
}
