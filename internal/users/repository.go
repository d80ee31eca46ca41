package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, name, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, email, name, password_hash, is_active, created_at, updated_at`,
		email, name, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("%w: email already registered", httpx.ErrConflict)
		}
		return User{}, err
	}
	return user, nil
}

// FindByEmail fetches a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, is_active, created_at, updated_at FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %s", httpx.ErrNotFound, email)
		}
		return User{}, err
	}
	return user, nil
}

// FindByID fetches a user by ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, is_active, created_at, updated_at FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}
