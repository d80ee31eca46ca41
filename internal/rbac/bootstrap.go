package rbac

import (
	"context"
	"fmt"
)

// systemRoleSeed describes one canonical role and its permission bundle.
type systemRoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

// permissionCatalog is the canonical permission table. Bootstrap upserts
// each entry by name, so re-runs never duplicate rows.
var permissionCatalog = []Permission{
	{Name: "user:create", Resource: "user", Action: "create", Description: "Create users"},
	{Name: "user:read", Resource: "user", Action: "read", Description: "View users"},
	{Name: "user:update", Resource: "user", Action: "update", Description: "Update users"},
	{Name: "user:delete", Resource: "user", Action: "delete", Description: "Delete users"},

	{Name: "tenant:create", Resource: "tenant", Action: "create", Description: "Create tenants"},
	{Name: "tenant:read", Resource: "tenant", Action: "read", Description: "View tenants"},
	{Name: "tenant:update", Resource: "tenant", Action: "update", Description: "Update tenants"},
	{Name: "tenant:delete", Resource: "tenant", Action: "delete", Description: "Delete tenants"},

	{Name: "role:create", Resource: "role", Action: "create", Description: "Create roles"},
	{Name: "role:read", Resource: "role", Action: "read", Description: "View roles"},
	{Name: "role:update", Resource: "role", Action: "update", Description: "Update roles"},
	{Name: "role:delete", Resource: "role", Action: "delete", Description: "Delete roles"},

	{Name: "recipe:create", Resource: "recipe", Action: "create", Description: "Create recipes"},
	{Name: "recipe:read", Resource: "recipe", Action: "read", Description: "View recipes"},
	{Name: "recipe:update", Resource: "recipe", Action: "update", Description: "Update recipes"},
	{Name: "recipe:delete", Resource: "recipe", Action: "delete", Description: "Delete recipes"},

	{Name: "meal:create", Resource: "meal", Action: "create", Description: "Create meals"},
	{Name: "meal:read", Resource: "meal", Action: "read", Description: "View meals"},
	{Name: "meal:update", Resource: "meal", Action: "update", Description: "Update meals"},
	{Name: "meal:delete", Resource: "meal", Action: "delete", Description: "Delete meals"},

	{Name: "plan:create", Resource: "plan", Action: "create", Description: "Create plans"},
	{Name: "plan:read", Resource: "plan", Action: "read", Description: "View plans"},
	{Name: "plan:update", Resource: "plan", Action: "update", Description: "Update plans"},
	{Name: "plan:delete", Resource: "plan", Action: "delete", Description: "Delete plans"},

	{Name: "shopping-list:create", Resource: "shopping-list", Action: "create", Description: "Create shopping lists"},
	{Name: "shopping-list:read", Resource: "shopping-list", Action: "read", Description: "View shopping lists"},
	{Name: "shopping-list:update", Resource: "shopping-list", Action: "update", Description: "Update shopping lists"},
	{Name: "shopping-list:delete", Resource: "shopping-list", Action: "delete", Description: "Delete shopping lists"},

	{Name: "analytics:read", Resource: "analytics", Action: "read", Description: "View analytics"},

	{Name: "collaboration:create", Resource: "collaboration", Action: "create", Description: "Create collaboration items"},
	{Name: "collaboration:read", Resource: "collaboration", Action: "read", Description: "View collaboration items"},
	{Name: "collaboration:update", Resource: "collaboration", Action: "update", Description: "Update collaboration items"},
	{Name: "collaboration:delete", Resource: "collaboration", Action: "delete", Description: "Delete collaboration items"},
}

var systemRoles = []systemRoleSeed{
	{
		Name:        "admin",
		Description: "Full administrative access",
		Permissions: catalogNames(),
	},
	{
		Name:        "manager",
		Description: "Management access with limited administrative capabilities",
		Permissions: []string{
			"user:read", "user:update",
			"tenant:read", "tenant:update",
			"recipe:create", "recipe:read", "recipe:update", "recipe:delete",
			"meal:create", "meal:read", "meal:update", "meal:delete",
			"plan:create", "plan:read", "plan:update", "plan:delete",
			"shopping-list:create", "shopping-list:read", "shopping-list:update", "shopping-list:delete",
			"analytics:read",
			"collaboration:create", "collaboration:read", "collaboration:update", "collaboration:delete",
		},
	},
	{
		Name:        "member",
		Description: "Standard user access",
		Permissions: []string{
			"recipe:create", "recipe:read", "recipe:update",
			"meal:create", "meal:read", "meal:update",
			"plan:create", "plan:read", "plan:update",
			"shopping-list:read", "shopping-list:update",
			"analytics:read",
			"collaboration:create", "collaboration:read", "collaboration:update",
		},
	},
	{
		Name:        "viewer",
		Description: "Read-only access",
		Permissions: []string{
			"recipe:read", "meal:read", "plan:read", "shopping-list:read", "analytics:read", "collaboration:read",
		},
	},
}

func catalogNames() []string {
	names := make([]string, len(permissionCatalog))
	for i, p := range permissionCatalog {
		names[i] = p.Name
	}
	return names
}

// SystemRoleNames lists the canonical, non-deletable roles.
func SystemRoleNames() []string {
	names := make([]string, len(systemRoles))
	for i, role := range systemRoles {
		names[i] = role.Name
	}
	return names
}

// InitializeSystemRoles seeds the canonical permission catalog and the four
// system roles. The whole sequence runs in one transaction: existing
// permissions are left untouched, roles are upserted with is_system set,
// and each role's link set is reconciled to the seed bundle. Safe to call
// on every process start, including concurrently from multiple instances;
// the name uniqueness constraints make the upserts race-free.
func (s *Service) InitializeSystemRoles(ctx context.Context) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		for _, seed := range permissionCatalog {
			if _, err := tx.UpsertPermission(ctx, seed); err != nil {
				return fmt.Errorf("rbac: seed permission %s: %w", seed.Name, err)
			}
		}
		for _, seed := range systemRoles {
			role, err := tx.UpsertSystemRole(ctx, Role{Name: seed.Name, Description: seed.Description, IsSystem: true})
			if err != nil {
				return fmt.Errorf("rbac: seed role %s: %w", seed.Name, err)
			}
			perms, err := tx.GetPermissionsByNames(ctx, seed.Permissions)
			if err != nil {
				return fmt.Errorf("rbac: resolve bundle for %s: %w", seed.Name, err)
			}
			if len(perms) != len(seed.Permissions) {
				return fmt.Errorf("rbac: bundle for %s resolved %d of %d permissions", seed.Name, len(perms), len(seed.Permissions))
			}
			ids := make([]int64, len(perms))
			for i, p := range perms {
				ids[i] = p.ID
			}
			if err := tx.ReplaceRolePermissions(ctx, role.ID, ids); err != nil {
				return fmt.Errorf("rbac: link bundle for %s: %w", seed.Name, err)
			}
		}
		return nil
	})
}
