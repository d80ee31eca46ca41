package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pantryplan/pantryplan/internal/platform/db"
	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Store defines the persistence surface consumed by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	ListForUser(ctx context.Context, userID int64) ([]Tenant, error)
	Get(ctx context.Context, id int64) (TenantDetail, error)
}

// TxStore exposes the mutations that must run inside a transaction.
type TxStore interface {
	InsertTenant(ctx context.Context, name string) (Tenant, error)
	FindRoleIDByName(ctx context.Context, name string) (int64, error)
	FindUserIDByEmail(ctx context.Context, email string) (int64, error)
	InsertMembership(ctx context.Context, userID, tenantID int64, roleID *int64) error
	DeleteMembership(ctx context.Context, userID, tenantID int64) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

// ListForUser returns the tenants the user belongs to.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.created_at, t.updated_at
		FROM tenants t
		JOIN memberships m ON m.tenant_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Get loads a tenant with its members.
func (r *Repository) Get(ctx context.Context, id int64) (TenantDetail, error) {
	var detail TenantDetail
	row := r.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`, id)
	if err := row.Scan(&detail.ID, &detail.Name, &detail.CreatedAt, &detail.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantDetail{}, fmt.Errorf("%w: tenant %d", httpx.ErrNotFound, id)
		}
		return TenantDetail{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT m.user_id, u.email, u.name, m.role_id, COALESCE(r.name, ''), m.created_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN roles r ON r.id = m.role_id
		WHERE m.tenant_id = $1
		ORDER BY u.email`, id)
	if err != nil {
		return TenantDetail{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var member Member
		if err := rows.Scan(&member.UserID, &member.Email, &member.Name, &member.RoleID, &member.RoleName, &member.CreatedAt); err != nil {
			return TenantDetail{}, err
		}
		detail.Members = append(detail.Members, member)
	}
	return detail, rows.Err()
}

func (s *txStore) InsertTenant(ctx context.Context, name string) (Tenant, error) {
	var t Tenant
	row := s.tx.QueryRow(ctx, `INSERT INTO tenants (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Tenant{}, err
	}
	return t, nil
}

func (s *txStore) FindRoleIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := s.tx.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: role %q", httpx.ErrNotFound, name)
		}
		return 0, err
	}
	return id, nil
}

func (s *txStore) FindUserIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	if err := s.tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: user %s", httpx.ErrNotFound, email)
		}
		return 0, err
	}
	return id, nil
}

func (s *txStore) InsertMembership(ctx context.Context, userID, tenantID int64, roleID *int64) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO memberships (user_id, tenant_id, role_id) VALUES ($1, $2, $3)`, userID, tenantID, roleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: user is already a member of this tenant", httpx.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *txStore) DeleteMembership(ctx context.Context, userID, tenantID int64) (int64, error) {
	tag, err := s.tx.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*Repository)(nil)
