package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// memoryStore is an in-memory Store used by the service and guard tests.
type memoryStore struct {
	permissions map[int64]Permission
	roles       map[int64]Role
	rolePerms   map[int64][]int64
	memberships map[string]*Membership

	nextPermID int64
	nextRoleID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		permissions: make(map[int64]Permission),
		roles:       make(map[int64]Role),
		rolePerms:   make(map[int64][]int64),
		memberships: make(map[string]*Membership),
	}
}

func membershipKey(userID, tenantID int64) string {
	return fmt.Sprintf("%d:%d", userID, tenantID)
}

// addMembership seeds a membership row the way the tenants module would.
func (m *memoryStore) addMembership(userID, tenantID int64, roleID *int64) {
	m.memberships[membershipKey(userID, tenantID)] = &Membership{UserID: userID, TenantID: tenantID, RoleID: roleID}
}

func (m *memoryStore) roleIDByName(name string) int64 {
	for id, role := range m.roles {
		if role.Name == name {
			return id
		}
	}
	return 0
}

func (m *memoryStore) permIDByName(name string) int64 {
	for id, p := range m.permissions {
		if p.Name == name {
			return id
		}
	}
	return 0
}

type memoryTx struct {
	store *memoryStore
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, &memoryTx{store: m})
}

func (m *memoryStore) ListPermissions(_ context.Context, resource string) ([]Permission, error) {
	var out []Permission
	for _, p := range m.permissions {
		if resource == "" || p.Resource == resource {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) ListRoles(ctx context.Context) ([]RoleDetail, error) {
	var out []RoleDetail
	for id := range m.roles {
		detail, err := m.GetRoleDetail(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) GetRoleDetail(_ context.Context, id int64) (RoleDetail, error) {
	role, ok := m.roles[id]
	if !ok {
		return RoleDetail{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	detail := RoleDetail{Role: role, Permissions: []Permission{}}
	for _, permID := range m.rolePerms[id] {
		detail.Permissions = append(detail.Permissions, m.permissions[permID])
	}
	for _, membership := range m.memberships {
		if membership.RoleID != nil && *membership.RoleID == id {
			detail.MembershipCount++
		}
	}
	return detail, nil
}

func (m *memoryStore) FindMembership(_ context.Context, userID, tenantID int64) (*MembershipDetail, error) {
	membership, ok := m.memberships[membershipKey(userID, tenantID)]
	if !ok {
		return nil, nil
	}
	detail := &MembershipDetail{Membership: *membership, Permissions: []Permission{}}
	if membership.RoleID != nil {
		role := m.roles[*membership.RoleID]
		detail.Role = &role
		for _, permID := range m.rolePerms[role.ID] {
			detail.Permissions = append(detail.Permissions, m.permissions[permID])
		}
	}
	return detail, nil
}

func (m *memoryStore) EffectivePermissions(_ context.Context, userID, tenantID int64) ([]string, error) {
	out := []string{}
	membership, ok := m.memberships[membershipKey(userID, tenantID)]
	if !ok || membership.RoleID == nil {
		return out, nil
	}
	for _, permID := range m.rolePerms[*membership.RoleID] {
		out = append(out, m.permissions[permID].Name)
	}
	sort.Strings(out)
	return out, nil
}

func (tx *memoryTx) InsertPermission(_ context.Context, p Permission) (Permission, error) {
	if tx.store.permIDByName(p.Name) != 0 {
		return Permission{}, fmt.Errorf("%w: permission %q already exists", httpx.ErrConflict, p.Name)
	}
	tx.store.nextPermID++
	p.ID = tx.store.nextPermID
	tx.store.permissions[p.ID] = p
	return p, nil
}

func (tx *memoryTx) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	if id := tx.store.permIDByName(p.Name); id != 0 {
		return tx.store.permissions[id], nil
	}
	return tx.InsertPermission(ctx, p)
}

func (tx *memoryTx) GetPermissionsByIDs(_ context.Context, ids []int64) ([]Permission, error) {
	seen := make(map[int64]struct{}, len(ids))
	var out []Permission
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := tx.store.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetPermissionsByNames(_ context.Context, names []string) ([]Permission, error) {
	var out []Permission
	for _, name := range names {
		if id := tx.store.permIDByName(name); id != 0 {
			out = append(out, tx.store.permissions[id])
		}
	}
	return out, nil
}

func (tx *memoryTx) CountRolesWithPermission(_ context.Context, permissionID int64) (int64, error) {
	var count int64
	for _, permIDs := range tx.store.rolePerms {
		for _, id := range permIDs {
			if id == permissionID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (tx *memoryTx) DeletePermission(_ context.Context, id int64) (int64, error) {
	if _, ok := tx.store.permissions[id]; !ok {
		return 0, nil
	}
	delete(tx.store.permissions, id)
	return 1, nil
}

func (tx *memoryTx) InsertRole(_ context.Context, role Role) (Role, error) {
	if tx.store.roleIDByName(role.Name) != 0 {
		return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Name)
	}
	tx.store.nextRoleID++
	role.ID = tx.store.nextRoleID
	tx.store.roles[role.ID] = role
	return role, nil
}

func (tx *memoryTx) UpsertSystemRole(ctx context.Context, role Role) (Role, error) {
	if id := tx.store.roleIDByName(role.Name); id != 0 {
		existing := tx.store.roles[id]
		existing.IsSystem = true
		existing.Description = role.Description
		tx.store.roles[id] = existing
		return existing, nil
	}
	role.IsSystem = true
	return tx.InsertRole(ctx, role)
}

func (tx *memoryTx) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := tx.store.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	return role, nil
}

func (tx *memoryTx) UpdateRole(_ context.Context, role Role) (Role, error) {
	if _, ok := tx.store.roles[role.ID]; !ok {
		return Role{}, fmt.Errorf("%w: role %d", httpx.ErrNotFound, role.ID)
	}
	tx.store.roles[role.ID] = role
	return role, nil
}

func (tx *memoryTx) CountMembershipsWithRole(_ context.Context, roleID int64) (int64, error) {
	var count int64
	for _, membership := range tx.store.memberships {
		if membership.RoleID != nil && *membership.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (tx *memoryTx) DeleteRole(_ context.Context, id int64) (int64, error) {
	if _, ok := tx.store.roles[id]; !ok {
		return 0, nil
	}
	delete(tx.store.roles, id)
	delete(tx.store.rolePerms, id)
	return 1, nil
}

func (tx *memoryTx) ReplaceRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	tx.store.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (tx *memoryTx) SetMembershipRole(_ context.Context, userID, tenantID int64, roleID *int64) (int64, error) {
	membership, ok := tx.store.memberships[membershipKey(userID, tenantID)]
	if !ok {
		return 0, nil
	}
	membership.RoleID = roleID
	return 1, nil
}

var _ Store = (*memoryStore)(nil)
var _ TxStore = (*memoryTx)(nil)
