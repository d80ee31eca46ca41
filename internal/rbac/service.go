package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// Service orchestrates RBAC operations.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreatePermission inserts a new permission into the catalog.
func (s *Service) CreatePermission(ctx context.Context, name, resource, action, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if name == "" || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("%w: permission name, resource and action are required", httpx.ErrValidation)
	}
	var created Permission
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		created, err = tx.InsertPermission(ctx, Permission{
			Name:        name,
			Resource:    resource,
			Action:      action,
			Description: strings.TrimSpace(description),
		})
		return err
	})
	if err != nil {
		return Permission{}, err
	}
	return created, nil
}

// ListPermissions returns the catalog ordered by (resource, action),
// optionally restricted to one resource.
func (s *Service) ListPermissions(ctx context.Context, resource string) ([]Permission, error) {
	return s.store.ListPermissions(ctx, strings.TrimSpace(resource))
}

// DeletePermission removes a permission unless a role still references it.
// The in-use check and the delete run in one transaction, so a concurrent
// grant cannot slip between them.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		count, err := tx.CountRolesWithPermission(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: permission in use", httpx.ErrConflict)
		}
		rows, err := tx.DeletePermission(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
		}
		return nil
	})
}

// CreateRole creates a role and links the given permissions. Unknown
// permission IDs are rejected rather than silently dropped.
func (s *Service) CreateRole(ctx context.Context, name, description string, permissionIDs []int64) (RoleDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoleDetail{}, fmt.Errorf("%w: role name is required", httpx.ErrValidation)
	}
	var created Role
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		created, err = tx.InsertRole(ctx, Role{Name: name, Description: strings.TrimSpace(description)})
		if err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		if err := verifyPermissionIDs(ctx, tx, permissionIDs); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, created.ID, permissionIDs)
	})
	if err != nil {
		return RoleDetail{}, err
	}
	return s.store.GetRoleDetail(ctx, created.ID)
}

// GetRole fetches a role with its permissions and membership count.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleDetail, error) {
	return s.store.GetRoleDetail(ctx, id)
}

// ListRoles returns all roles with bundles and membership counts.
func (s *Service) ListRoles(ctx context.Context) ([]RoleDetail, error) {
	return s.store.ListRoles(ctx)
}

// UpdateRoleInput carries optional role mutations. A non-nil PermissionIDs
// replaces the whole bundle.
type UpdateRoleInput struct {
	Name          *string
	Description   *string
	PermissionIDs []int64
}

// UpdateRole applies the given changes to a role.
func (s *Service) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (RoleDetail, error) {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		role, err := tx.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return fmt.Errorf("%w: role name is required", httpx.ErrValidation)
			}
			role.Name = name
		}
		if input.Description != nil {
			role.Description = strings.TrimSpace(*input.Description)
		}
		if _, err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		if input.PermissionIDs == nil {
			return nil
		}
		if err := verifyPermissionIDs(ctx, tx, input.PermissionIDs); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, id, input.PermissionIDs)
	})
	if err != nil {
		return RoleDetail{}, err
	}
	return s.store.GetRoleDetail(ctx, id)
}

// DeleteRole removes a user-defined, unused role. System roles and roles
// still referenced by memberships are protected. The reference check and
// the delete run in one transaction.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		role, err := tx.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return fmt.Errorf("%w: cannot delete system role %q", httpx.ErrConflict, role.Name)
		}
		count, err := tx.CountMembershipsWithRole(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: role is assigned to %d membership(s)", httpx.ErrConflict, count)
		}
		if _, err := tx.DeleteRole(ctx, id); err != nil {
			return err
		}
		return nil
	})
}

// GetUserPermissions returns the effective permission names for the user in
// the tenant. Missing membership, missing role or an empty bundle all yield
// the empty set.
func (s *Service) GetUserPermissions(ctx context.Context, userID, tenantID int64) ([]string, error) {
	return s.store.EffectivePermissions(ctx, userID, tenantID)
}

// HasPermission reports whether the user holds resource:action in the tenant.
func (s *Service) HasPermission(ctx context.Context, userID, tenantID int64, resource, action string) (bool, error) {
	perms, err := s.store.EffectivePermissions(ctx, userID, tenantID)
	if err != nil {
		return false, err
	}
	want := PermissionName(resource, action)
	for _, p := range perms {
		if p == want {
			return true, nil
		}
	}
	return false, nil
}

// AssignRoleToUser sets the role on an existing membership. Both the role
// and the membership must already exist.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, tenantID, roleID int64) (*MembershipDetail, error) {
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return err
		}
		rows, err := tx.SetMembershipRole(ctx, userID, tenantID, &roleID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: membership for user %d in tenant %d", httpx.ErrNotFound, userID, tenantID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.FindMembership(ctx, userID, tenantID)
}

// RemoveRoleFromUser clears the role on a membership. Removing an already
// absent role is a no-op; only a missing membership is an error.
func (s *Service) RemoveRoleFromUser(ctx context.Context, userID, tenantID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		rows, err := tx.SetMembershipRole(ctx, userID, tenantID, nil)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: membership for user %d in tenant %d", httpx.ErrNotFound, userID, tenantID)
		}
		return nil
	})
}

func verifyPermissionIDs(ctx context.Context, tx TxStore, ids []int64) error {
	found, err := tx.GetPermissionsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) == len(dedupeIDs(ids)) {
		return nil
	}
	known := make(map[int64]struct{}, len(found))
	for _, p := range found {
		known[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: unknown permission id %d", httpx.ErrValidation, id)
		}
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
