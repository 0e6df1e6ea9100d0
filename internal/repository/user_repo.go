package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, name, password_hash, credits, skills, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Credits, &u.Skills, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, database.MapError(err)
	}
	return &u, nil
}

// Create inserts a new user with a zero balance. Duplicate emails yield apperr.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if u.Skills == nil {
		u.Skills = []string{}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash, credits, skills)
		VALUES ($1, $2, $3, $4, 0, $5)
		RETURNING credits, created_at, updated_at
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.Skills).Scan(&u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", database.MapError(err))
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// UpdateProfile edits the user's public profile. Credits are never touched here.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, skills []string) (*models.User, error) {
	if skills == nil {
		skills = []string{}
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE users SET name = $2, email = $3, skills = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, name, email, skills))
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}
