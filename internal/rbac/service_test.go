package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

func seededService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	svc := NewService(store)
	require.NoError(t, svc.InitializeSystemRoles(context.Background()))
	return svc, store
}

func TestInitializeSystemRolesSeedsCatalog(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	perms, err := svc.ListPermissions(ctx, "")
	require.NoError(t, err)
	require.Len(t, perms, 33)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 4)
	for _, role := range roles {
		require.True(t, role.IsSystem, "role %s must be a system role", role.Name)
	}

	admin, err := svc.GetRole(ctx, store.roleIDByName("admin"))
	require.NoError(t, err)
	require.Len(t, admin.Permissions, 33)

	manager, err := svc.GetRole(ctx, store.roleIDByName("manager"))
	require.NoError(t, err)
	require.Len(t, manager.Permissions, 25)

	member, err := svc.GetRole(ctx, store.roleIDByName("member"))
	require.NoError(t, err)
	require.Len(t, member.Permissions, 15)

	viewer, err := svc.GetRole(ctx, store.roleIDByName("viewer"))
	require.NoError(t, err)
	names := make([]string, len(viewer.Permissions))
	for i, p := range viewer.Permissions {
		names[i] = p.Name
	}
	require.ElementsMatch(t, []string{
		"recipe:read", "meal:read", "plan:read", "shopping-list:read", "analytics:read", "collaboration:read",
	}, names)
}

func TestInitializeSystemRolesIsIdempotent(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeSystemRoles(ctx))
	require.NoError(t, svc.InitializeSystemRoles(ctx))

	perms, err := svc.ListPermissions(ctx, "")
	require.NoError(t, err)
	require.Len(t, perms, 33)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 4)

	admin, err := svc.GetRole(ctx, store.roleIDByName("admin"))
	require.NoError(t, err)
	require.Len(t, admin.Permissions, 33)
}

func TestInitializeSystemRolesRestoresTamperedBundle(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	viewerID := store.roleIDByName("viewer")
	store.rolePerms[viewerID] = nil

	require.NoError(t, svc.InitializeSystemRoles(ctx))
	viewer, err := svc.GetRole(ctx, viewerID)
	require.NoError(t, err)
	require.Len(t, viewer.Permissions, 6)
}

func TestListPermissionsFiltersByResource(t *testing.T) {
	svc, _ := seededService(t)

	perms, err := svc.ListPermissions(context.Background(), "recipe")
	require.NoError(t, err)
	require.Len(t, perms, 4)
	for _, p := range perms {
		require.Equal(t, "recipe", p.Resource)
	}
}

func TestCreatePermissionValidatesInput(t *testing.T) {
	svc, _ := seededService(t)

	_, err := svc.CreatePermission(context.Background(), "", "pantry", "read", "")
	require.ErrorIs(t, err, httpx.ErrValidation)

	created, err := svc.CreatePermission(context.Background(), "pantry:read", "pantry", "read", "View pantry")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, "pantry:read", created.Name)
}

func TestCreatePermissionRejectsDuplicateName(t *testing.T) {
	svc, _ := seededService(t)

	_, err := svc.CreatePermission(context.Background(), "recipe:read", "recipe", "read", "")
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestDeletePermissionInUse(t *testing.T) {
	svc, store := seededService(t)

	err := svc.DeletePermission(context.Background(), store.permIDByName("recipe:read"))
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestDeletePermission(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	created, err := svc.CreatePermission(ctx, "pantry:read", "pantry", "read", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePermission(ctx, created.ID))
	require.ErrorIs(t, svc.DeletePermission(ctx, created.ID), httpx.ErrNotFound)
}

func TestCreateRoleRejectsUnknownPermissionIDs(t *testing.T) {
	svc, _ := seededService(t)

	_, err := svc.CreateRole(context.Background(), "chef", "", []int64{99999})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateRoleLinksBundle(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	ids := []int64{store.permIDByName("recipe:read"), store.permIDByName("recipe:create")}
	detail, err := svc.CreateRole(ctx, "chef", "Recipe author", ids)
	require.NoError(t, err)
	require.False(t, detail.IsSystem)
	require.Len(t, detail.Permissions, 2)
}

func TestUpdateRoleReplacesBundle(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	detail, err := svc.CreateRole(ctx, "chef", "", []int64{
		store.permIDByName("recipe:read"),
		store.permIDByName("recipe:create"),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateRole(ctx, detail.ID, UpdateRoleInput{
		PermissionIDs: []int64{store.permIDByName("meal:read")},
	})
	require.NoError(t, err)
	require.Len(t, updated.Permissions, 1)
	require.Equal(t, "meal:read", updated.Permissions[0].Name)
}

func TestUpdateRoleKeepsBundleWhenIDsOmitted(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	detail, err := svc.CreateRole(ctx, "chef", "", []int64{store.permIDByName("recipe:read")})
	require.NoError(t, err)

	name := "head chef"
	updated, err := svc.UpdateRole(ctx, detail.ID, UpdateRoleInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "head chef", updated.Name)
	require.Len(t, updated.Permissions, 1)
}

func TestDeleteSystemRoleConflicts(t *testing.T) {
	svc, store := seededService(t)

	err := svc.DeleteRole(context.Background(), store.roleIDByName("admin"))
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestDeleteRoleWithMembershipsConflicts(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	detail, err := svc.CreateRole(ctx, "chef", "", nil)
	require.NoError(t, err)
	store.addMembership(1, 1, &detail.ID)

	require.ErrorIs(t, svc.DeleteRole(ctx, detail.ID), httpx.ErrConflict)
}

func TestDeleteRole(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	detail, err := svc.CreateRole(ctx, "chef", "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, detail.ID))
	require.ErrorIs(t, svc.DeleteRole(ctx, detail.ID), httpx.ErrNotFound)
}

func TestGetUserPermissionsWithoutMembership(t *testing.T) {
	svc, _ := seededService(t)

	perms, err := svc.GetUserPermissions(context.Background(), 42, 7)
	require.NoError(t, err)
	require.NotNil(t, perms)
	require.Empty(t, perms)
}

func TestGetUserPermissionsWithoutRole(t *testing.T) {
	svc, store := seededService(t)
	store.addMembership(42, 7, nil)

	perms, err := svc.GetUserPermissions(context.Background(), 42, 7)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestHasPermission(t *testing.T) {
	svc, store := seededService(t)
	viewerID := store.roleIDByName("viewer")
	store.addMembership(42, 7, &viewerID)
	ctx := context.Background()

	ok, err := svc.HasPermission(ctx, 42, 7, "recipe", "read")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPermission(ctx, 42, 7, "recipe", "delete")
	require.NoError(t, err)
	require.False(t, ok)

	// same user, different tenant: nothing carries over
	ok, err = svc.HasPermission(ctx, 42, 8, "recipe", "read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAssignRoleToUser(t *testing.T) {
	svc, store := seededService(t)
	store.addMembership(42, 7, nil)
	ctx := context.Background()

	detail, err := svc.AssignRoleToUser(ctx, 42, 7, store.roleIDByName("member"))
	require.NoError(t, err)
	require.NotNil(t, detail.Role)
	require.Equal(t, "member", detail.Role.Name)
	require.Len(t, detail.Permissions, 15)
}

func TestAssignRoleRequiresExistingRole(t *testing.T) {
	svc, store := seededService(t)
	store.addMembership(42, 7, nil)

	_, err := svc.AssignRoleToUser(context.Background(), 42, 7, 99999)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAssignRoleRequiresExistingMembership(t *testing.T) {
	svc, store := seededService(t)

	_, err := svc.AssignRoleToUser(context.Background(), 42, 7, store.roleIDByName("member"))
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRemoveRoleFromUser(t *testing.T) {
	svc, store := seededService(t)
	viewerID := store.roleIDByName("viewer")
	store.addMembership(42, 7, &viewerID)
	ctx := context.Background()

	require.NoError(t, svc.RemoveRoleFromUser(ctx, 42, 7))

	perms, err := svc.GetUserPermissions(ctx, 42, 7)
	require.NoError(t, err)
	require.Empty(t, perms)

	// removing again is a no-op while the membership exists
	require.NoError(t, svc.RemoveRoleFromUser(ctx, 42, 7))
	require.ErrorIs(t, svc.RemoveRoleFromUser(ctx, 42, 8), httpx.ErrNotFound)
}
