package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/pantryplan/pantryplan/internal/platform/db"
	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Store defines the persistence surface consumed by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	ListPermissions(ctx context.Context, resource string) ([]Permission, error)
	ListRoles(ctx context.Context) ([]RoleDetail, error)
	GetRoleDetail(ctx context.Context, id int64) (RoleDetail, error)
	FindMembership(ctx context.Context, userID, tenantID int64) (*MembershipDetail, error)
	EffectivePermissions(ctx context.Context, userID, tenantID int64) ([]string, error)
}

// TxStore exposes the mutations that must run inside a transaction.
type TxStore interface {
	InsertPermission(ctx context.Context, p Permission) (Permission, error)
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error)
	GetPermissionsByNames(ctx context.Context, names []string) ([]Permission, error)
	CountRolesWithPermission(ctx context.Context, permissionID int64) (int64, error)
	DeletePermission(ctx context.Context, id int64) (int64, error)
	InsertRole(ctx context.Context, role Role) (Role, error)
	UpsertSystemRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	CountMembershipsWithRole(ctx context.Context, roleID int64) (int64, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	SetMembershipRole(ctx context.Context, userID, tenantID int64, roleID *int64) (int64, error)
}

// Repository persists RBAC data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
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

// ListPermissions returns permissions ordered by resource then action,
// optionally restricted to a single resource.
func (r *Repository) ListPermissions(ctx context.Context, resource string) ([]Permission, error) {
	query := `SELECT id, name, resource, action, description FROM permissions ORDER BY resource, action`
	args := []any{}
	if resource != "" {
		query = `SELECT id, name, resource, action, description FROM permissions WHERE resource = $1 ORDER BY resource, action`
		args = append(args, resource)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListRoles returns all roles with their bundles and membership counts.
func (r *Repository) ListRoles(ctx context.Context) ([]RoleDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
		(SELECT COUNT(*) FROM memberships m WHERE m.role_id = r.id)
		FROM roles r ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []RoleDetail
	for rows.Next() {
		var d RoleDetail
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.IsSystem, &d.CreatedAt, &d.UpdatedAt, &d.MembershipCount); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		perms, err := r.rolePermissions(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Permissions = perms
	}
	return details, nil
}

// GetRoleDetail loads a role, its bundle and its membership count. The three
// reads are independent, so they fan out concurrently on the pool.
func (r *Repository) GetRoleDetail(ctx context.Context, id int64) (RoleDetail, error) {
	var detail RoleDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		row := r.pool.QueryRow(gctx, `SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE id = $1`, id)
		if err := row.Scan(&detail.ID, &detail.Name, &detail.Description, &detail.IsSystem, &detail.CreatedAt, &detail.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
			}
			return err
		}
		return nil
	})
	g.Go(func() error {
		perms, err := r.rolePermissions(gctx, id)
		if err != nil {
			return err
		}
		detail.Permissions = perms
		return nil
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM memberships WHERE role_id = $1`, id).Scan(&detail.MembershipCount)
	})
	if err := g.Wait(); err != nil {
		return RoleDetail{}, err
	}
	return detail, nil
}

// FindMembership loads a membership with its role and permissions attached.
// Returns nil when no membership exists for the pair.
func (r *Repository) FindMembership(ctx context.Context, userID, tenantID int64) (*MembershipDetail, error) {
	var (
		detail   MembershipDetail
		roleID   *int64
		roleName *string
		roleDesc *string
		isSystem *bool
	)
	row := r.pool.QueryRow(ctx, `SELECT m.user_id, m.tenant_id, m.role_id, m.created_at, m.updated_at,
		r.name, r.description, r.is_system
		FROM memberships m
		LEFT JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 AND m.tenant_id = $2`, userID, tenantID)
	if err := row.Scan(&detail.UserID, &detail.TenantID, &roleID, &detail.CreatedAt, &detail.UpdatedAt, &roleName, &roleDesc, &isSystem); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	detail.RoleID = roleID
	if roleID != nil {
		detail.Role = &Role{ID: *roleID, Name: *roleName, Description: *roleDesc, IsSystem: *isSystem}
		perms, err := r.rolePermissions(ctx, *roleID)
		if err != nil {
			return nil, err
		}
		detail.Permissions = perms
	}
	return &detail, nil
}

// EffectivePermissions resolves the permission names granted to the user in
// the tenant. A single joined query keeps the read consistent: membership,
// role and bundle come from one snapshot.
func (r *Repository) EffectivePermissions(ctx context.Context, userID, tenantID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.resource || ':' || p.action
		FROM memberships m
		JOIN roles r ON r.id = m.role_id
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE m.user_id = $1 AND m.tenant_id = $2
		ORDER BY p.resource, p.action`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

func (r *Repository) rolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, p.resource, p.action, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *txStore) InsertPermission(ctx context.Context, p Permission) (Permission, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO permissions (name, resource, action, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, resource, action, description`,
		p.Name, p.Resource, p.Action, p.Description)
	created, err := scanPermission(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, fmt.Errorf("%w: permission %q already exists", httpx.ErrConflict, p.Name)
		}
		return Permission{}, err
	}
	return created, nil
}

// UpsertPermission creates the permission unless a row with the same name
// already exists; the existing row is returned unchanged.
func (s *txStore) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	_, err := s.tx.Exec(ctx, `INSERT INTO permissions (name, resource, action, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING`,
		p.Name, p.Resource, p.Action, p.Description)
	if err != nil {
		return Permission{}, err
	}
	row := s.tx.QueryRow(ctx, `SELECT id, name, resource, action, description FROM permissions WHERE name = $1`, p.Name)
	return scanPermission(row)
}

func (s *txStore) GetPermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, name, resource, action, description FROM permissions WHERE id = ANY($1) ORDER BY resource, action`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *txStore) GetPermissionsByNames(ctx context.Context, names []string) ([]Permission, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, name, resource, action, description FROM permissions WHERE name = ANY($1) ORDER BY resource, action`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *txStore) CountRolesWithPermission(ctx context.Context, permissionID int64) (int64, error) {
	var count int64
	err := s.tx.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`, permissionID).Scan(&count)
	return count, err
}

func (s *txStore) DeletePermission(ctx context.Context, id int64) (int64, error) {
	tag, err := s.tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *txStore) InsertRole(ctx context.Context, role Role) (Role, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO roles (name, description, is_system)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, is_system, created_at, updated_at`,
		role.Name, role.Description, role.IsSystem)
	created, err := scanRole(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
		}
		return Role{}, err
	}
	return created, nil
}

// UpsertSystemRole creates the role or, when the name is taken, marks the
// existing row as system-defined. Description is kept as-is on conflict.
func (s *txStore) UpsertSystemRole(ctx context.Context, role Role) (Role, error) {
	row := s.tx.QueryRow(ctx, `INSERT INTO roles (name, description, is_system)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (name) DO UPDATE SET is_system = TRUE, updated_at = NOW()
		RETURNING id, name, description, is_system, created_at, updated_at`,
		role.Name, role.Description)
	return scanRole(row)
}

func (s *txStore) GetRole(ctx context.Context, id int64) (Role, error) {
	row := s.tx.QueryRow(ctx, `SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

func (s *txStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := s.tx.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, description, is_system, created_at, updated_at`,
		role.ID, role.Name, role.Description)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, role.ID)
		}
		if isUniqueViolation(err) {
			return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
		}
		return Role{}, err
	}
	return updated, nil
}

func (s *txStore) CountMembershipsWithRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := s.tx.QueryRow(ctx, `SELECT COUNT(*) FROM memberships WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// DeleteRole removes the role and its permission links. Permissions
// themselves are never cascaded.
func (s *txStore) DeleteRole(ctx context.Context, id int64) (int64, error) {
	if _, err := s.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return 0, err
	}
	tag, err := s.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReplaceRolePermissions reconciles the link set to exactly permissionIDs.
func (s *txStore) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := s.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		if _, err := s.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, pid); err != nil {
			return err
		}
	}
	return nil
}

func (s *txStore) SetMembershipRole(ctx context.Context, userID, tenantID int64, roleID *int64) (int64, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE memberships SET role_id = $3, updated_at = NOW() WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID, roleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermission(row rowScanner) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description)
	return p, err
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*Repository)(nil)
