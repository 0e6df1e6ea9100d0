package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nivekithan/gig-marketplace/internal/models"
)

// Ledger is the slice of the ledger service the workflows move credits with.
type Ledger interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, kind string, gigID *uuid.UUID) (*models.LedgerEntry, error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, kind string, gigID *uuid.UUID) (*models.LedgerEntry, error)
}

// GigStore is the gig persistence the workflows need.
type GigStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, g *models.Gig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Gig, error)
	UpdateDetailsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, name, description string) (*models.Gig, error)
	TransitionStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ListEmbedded(ctx context.Context, excludeID uuid.UUID) ([]*models.Gig, error)
}

// ProposalStore is the proposal persistence the workflows need.
type ProposalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	GetByGigAndProposer(ctx context.Context, gigID, proposerID uuid.UUID) (*models.Proposal, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Proposal, error)
	GetByGigAndProposerForUpdate(ctx context.Context, tx pgx.Tx, gigID, proposerID uuid.UUID) (*models.Proposal, error)
	UpdateTextTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, text string) (*models.Proposal, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	DeleteByGigTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error
	TransitionStatusTx(ctx context.Context, tx pgx.Tx, id, gigID uuid.UUID, from, to string) (bool, error)
	ListAcceptedTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) ([]*models.Proposal, error)
	ListOpenForGig(ctx context.Context, gigID uuid.UUID) ([]*models.ProposalWithProposer, error)
	GetAcceptedForGig(ctx context.Context, gigID uuid.UUID) (*models.ProposalWithProposer, error)
	CountForGig(ctx context.Context, gigID uuid.UUID) (int, error)
}

// ContentChecker rejects free text that links to harmful URLs. It returns an
// apperr.FieldError naming the offending URL.
type ContentChecker interface {
	Verify(ctx context.Context, field, text string) error
}
