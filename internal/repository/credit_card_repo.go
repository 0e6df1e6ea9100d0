package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type CreditCardRepo struct {
	pool *pgxpool.Pool
}

func NewCreditCardRepo(pool *pgxpool.Pool) *CreditCardRepo {
	return &CreditCardRepo{pool: pool}
}

// Upsert stores the user's single card, replacing any previous one.
func (r *CreditCardRepo) Upsert(ctx context.Context, c *models.CreditCard) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO credit_cards (id, user_id, holder_name, last4, number_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET holder_name = EXCLUDED.holder_name, last4 = EXCLUDED.last4,
		    number_hash = EXCLUDED.number_hash, updated_at = now()
		RETURNING id, created_at, updated_at
	`, c.ID, c.UserID, c.HolderName, c.Last4, c.NumberHash).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert credit card: %w", database.MapError(err))
	}
	return nil
}

func (r *CreditCardRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditCard, error) {
	var c models.CreditCard
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, holder_name, last4, number_hash, created_at, updated_at
		FROM credit_cards WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.HolderName, &c.Last4, &c.NumberHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err)
	}
	return &c, nil
}
