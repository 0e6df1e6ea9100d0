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

type GigRepo struct {
	pool *pgxpool.Pool
}

func NewGigRepo(pool *pgxpool.Pool) *GigRepo {
	return &GigRepo{pool: pool}
}

const gigColumns = `g.id, g.owner_id, g.name, g.description, g.price, g.status, g.skills, g.embedding, g.created_at, g.updated_at`

func scanGig(row pgx.Row) (*models.Gig, error) {
	var g models.Gig
	if err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.Price, &g.Status, &g.Skills, &g.Embedding, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &g, nil
}

func collectGigs(rows pgx.Rows, err error) ([]*models.Gig, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Gig
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}

// CreateTx inserts the gig with status CREATED inside the given transaction.
func (r *GigRepo) CreateTx(ctx context.Context, tx pgx.Tx, g *models.Gig) error {
	if g.Skills == nil {
		g.Skills = []string{}
	}
	g.Status = models.GigStatusCreated
	err := tx.QueryRow(ctx, `
		INSERT INTO gigs (id, owner_id, name, description, price, status, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, g.ID, g.OwnerID, g.Name, g.Description, g.Price, g.Status, g.Skills).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert gig: %w", database.MapError(err))
	}
	return nil
}

func (r *GigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return scanGig(r.pool.QueryRow(ctx, `SELECT `+gigColumns+` FROM gigs g WHERE g.id = $1`, id))
}

// GetForUpdate locks the gig row. Call within a transaction.
func (r *GigRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Gig, error) {
	return scanGig(tx.QueryRow(ctx, `SELECT `+gigColumns+` FROM gigs g WHERE g.id = $1 FOR UPDATE`, id))
}

func (r *GigRepo) UpdateDetailsTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, name, description string) (*models.Gig, error) {
	return scanGig(tx.QueryRow(ctx, `
		UPDATE gigs g SET name = $2, description = $3, updated_at = now()
		WHERE g.id = $1
		RETURNING `+gigColumns, id, name, description))
}

// TransitionStatusTx moves the gig from one status to another. It reports
// false when the gig was not in the expected status.
func (r *GigRepo) TransitionStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE gigs SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GigRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM gigs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GigRepo) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE gigs SET embedding = $2 WHERE id = $1`, id, embedding)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GigRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Gig, error) {
	return collectGigs(r.pool.Query(ctx, `
		SELECT `+gigColumns+` FROM gigs g
		WHERE g.owner_id = $1
		ORDER BY g.created_at DESC
	`, ownerID))
}

// ListLatest returns open gigs posted by anyone except userID.
func (r *GigRepo) ListLatest(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Gig, error) {
	return collectGigs(r.pool.Query(ctx, `
		SELECT `+gigColumns+` FROM gigs g
		WHERE g.status = 'CREATED' AND g.owner_id <> $1
		ORDER BY g.created_at DESC
		LIMIT $2
	`, userID, limit))
}

// ListProposedBy returns gigs the user has submitted a proposal to.
func (r *GigRepo) ListProposedBy(ctx context.Context, userID uuid.UUID) ([]*models.Gig, error) {
	return collectGigs(r.pool.Query(ctx, `
		SELECT `+gigColumns+` FROM gigs g
		JOIN proposals p ON p.gig_id = g.id
		WHERE p.proposer_id = $1
		ORDER BY p.created_at DESC
	`, userID))
}

// ListAssignedTo returns gigs where the user's proposal was accepted.
func (r *GigRepo) ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]*models.Gig, error) {
	return collectGigs(r.pool.Query(ctx, `
		SELECT `+gigColumns+` FROM gigs g
		JOIN proposals p ON p.gig_id = g.id AND p.status = 'ACCEPTED'
		WHERE p.proposer_id = $1
		ORDER BY g.updated_at DESC
	`, userID))
}

// ListEmbedded returns open gigs with an embedding, excluding one gig.
func (r *GigRepo) ListEmbedded(ctx context.Context, excludeID uuid.UUID) ([]*models.Gig, error) {
	return collectGigs(r.pool.Query(ctx, `
		SELECT `+gigColumns+` FROM gigs g
		WHERE g.status = 'CREATED' AND g.embedding IS NOT NULL AND g.id <> $1
	`, excludeID))
}
