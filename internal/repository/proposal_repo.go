package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type ProposalRepo struct {
	pool *pgxpool.Pool
}

func NewProposalRepo(pool *pgxpool.Pool) *ProposalRepo {
	return &ProposalRepo{pool: pool}
}

const proposalColumns = `p.id, p.gig_id, p.proposer_id, p.text, p.status, p.created_at, p.updated_at`

func scanProposal(row pgx.Row) (*models.Proposal, error) {
	var p models.Proposal
	if err := row.Scan(&p.ID, &p.GigID, &p.ProposerID, &p.Text, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &p, nil
}

func scanProposalWithProposer(row pgx.Row) (*models.ProposalWithProposer, error) {
	var p models.ProposalWithProposer
	err := row.Scan(&p.ID, &p.GigID, &p.ProposerID, &p.Text, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		&p.Proposer.ID, &p.Proposer.Email, &p.Proposer.Name, &p.Proposer.Skills)
	if err != nil {
		return nil, database.MapError(err)
	}
	return &p, nil
}

// CreateTx inserts an OPEN proposal. A second proposal for the same
// (gig, proposer) pair yields apperr.ErrConflict.
func (r *ProposalRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Proposal) error {
	p.Status = models.ProposalStatusOpen
	err := tx.QueryRow(ctx, `
		INSERT INTO proposals (id, gig_id, proposer_id, text, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.GigID, p.ProposerID, p.Text, p.Status).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", database.MapError(err))
	}
	return nil
}

func (r *ProposalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return scanProposal(r.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals p WHERE p.id = $1`, id))
}

func (r *ProposalRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Proposal, error) {
	return scanProposal(tx.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals p WHERE p.id = $1 FOR UPDATE`, id))
}

func (r *ProposalRepo) GetByGigAndProposer(ctx context.Context, gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	return scanProposal(r.pool.QueryRow(ctx, `
		SELECT `+proposalColumns+` FROM proposals p
		WHERE p.gig_id = $1 AND p.proposer_id = $2
	`, gigID, proposerID))
}

func (r *ProposalRepo) GetByGigAndProposerForUpdate(ctx context.Context, tx pgx.Tx, gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	return scanProposal(tx.QueryRow(ctx, `
		SELECT `+proposalColumns+` FROM proposals p
		WHERE p.gig_id = $1 AND p.proposer_id = $2
		FOR UPDATE
	`, gigID, proposerID))
}

func (r *ProposalRepo) UpdateTextTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, text string) (*models.Proposal, error) {
	return scanProposal(tx.QueryRow(ctx, `
		UPDATE proposals p SET text = $2, updated_at = now()
		WHERE p.id = $1
		RETURNING `+proposalColumns, id, text))
}

func (r *ProposalRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteByGigTx removes every proposal of a gig.
func (r *ProposalRepo) DeleteByGigTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM proposals WHERE gig_id = $1`, gigID)
	return err
}

// TransitionStatusTx moves a proposal between statuses, scoped by its gig.
// It reports false when the proposal is not in the expected status or
// belongs to another gig.
func (r *ProposalRepo) TransitionStatusTx(ctx context.Context, tx pgx.Tx, id, gigID uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE proposals SET status = $4, updated_at = now()
		WHERE id = $1 AND gig_id = $2 AND status = $3
	`, id, gigID, from, to)
	if err != nil {
		return false, database.MapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProposalRepo) ListAcceptedTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) ([]*models.Proposal, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+proposalColumns+` FROM proposals p
		WHERE p.gig_id = $1 AND p.status = 'ACCEPTED'
	`, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

const proposerColumns = `u.id, u.email, u.name, u.skills`

// ListOpenForGig returns the gig's OPEN proposals with their proposers, oldest first.
func (r *ProposalRepo) ListOpenForGig(ctx context.Context, gigID uuid.UUID) ([]*models.ProposalWithProposer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+proposalColumns+`, `+proposerColumns+`
		FROM proposals p JOIN users u ON u.id = p.proposer_id
		WHERE p.gig_id = $1 AND p.status = 'OPEN'
		ORDER BY p.created_at
	`, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ProposalWithProposer
	for rows.Next() {
		p, err := scanProposalWithProposer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *ProposalRepo) GetAcceptedForGig(ctx context.Context, gigID uuid.UUID) (*models.ProposalWithProposer, error) {
	return scanProposalWithProposer(r.pool.QueryRow(ctx, `
		SELECT `+proposalColumns+`, `+proposerColumns+`
		FROM proposals p JOIN users u ON u.id = p.proposer_id
		WHERE p.gig_id = $1 AND p.status = 'ACCEPTED'
	`, gigID))
}

func (r *ProposalRepo) CountForGig(ctx context.Context, gigID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM proposals WHERE gig_id = $1`, gigID).Scan(&n)
	return n, err
}
