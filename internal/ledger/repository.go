package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// Repository is the Postgres Store. Balances live on users.credits, history
// on ledger_entries.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var credits int64
	err := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		return 0, database.MapError(err)
	}
	return credits, nil
}

// LockBalance reads the balance and holds the user row lock until the tx ends.
func (r *Repository) LockBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	var credits int64
	err := tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&credits)
	if err != nil {
		return 0, database.MapError(err)
	}
	return credits, nil
}

// DeductTx atomically deducts amount if the balance covers it.
func (r *Repository) DeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var credits int64
	err := tx.QueryRow(ctx, `
		UPDATE users SET credits = credits - $1, updated_at = now()
		WHERE id = $2 AND credits >= $1
		RETURNING credits
	`, amount, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

func (r *Repository) AddTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var credits int64
	err := tx.QueryRow(ctx, `
		UPDATE users SET credits = credits + $1, updated_at = now()
		WHERE id = $2
		RETURNING credits
	`, amount, userID).Scan(&credits)
	if err != nil {
		return 0, database.MapError(err)
	}
	return credits, nil
}

func (r *Repository) InsertEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, gig_id, kind, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.UserID, e.GigID, e.Kind, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, gig_id, kind, amount, balance_after, created_at
		FROM ledger_entries WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.GigID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

func (r *Repository) Reconcile(ctx context.Context, userID uuid.UUID) (models.Reconciliation, error) {
	rec := models.Reconciliation{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT u.credits, COALESCE(SUM(e.amount), 0)
		FROM users u LEFT JOIN ledger_entries e ON e.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id
	`, userID).Scan(&rec.Balance, &rec.LedgerSum)
	if err != nil {
		return rec, database.MapError(err)
	}
	return rec, nil
}

// ListImbalances returns every user whose balance differs from their ledger sum.
func (r *Repository) ListImbalances(ctx context.Context) ([]models.Reconciliation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.credits, COALESCE(SUM(e.amount), 0) AS ledger_sum
		FROM users u LEFT JOIN ledger_entries e ON e.user_id = u.id
		GROUP BY u.id
		HAVING u.credits <> COALESCE(SUM(e.amount), 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("query imbalances: %w", err)
	}
	defer rows.Close()
	var list []models.Reconciliation
	for rows.Next() {
		var rec models.Reconciliation
		if err := rows.Scan(&rec.UserID, &rec.Balance, &rec.LedgerSum); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
