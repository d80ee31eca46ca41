package tenants

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

type memoryStore struct {
	tenants     map[int64]Tenant
	memberships map[string]*int64
	roles       map[string]int64
	users       map[string]int64
	nextID      int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		tenants:     make(map[int64]Tenant),
		memberships: make(map[string]*int64),
		roles:       map[string]int64{"admin": 1, "member": 3, "viewer": 4},
		users:       map[string]int64{"owner@example.com": 10, "guest@example.com": 11},
	}
}

func membershipKey(userID, tenantID int64) string {
	return fmt.Sprintf("%d:%d", userID, tenantID)
}

type memoryTx struct {
	store *memoryStore
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, &memoryTx{store: m})
}

func (m *memoryStore) ListForUser(_ context.Context, userID int64) ([]Tenant, error) {
	var out []Tenant
	for id, t := range m.tenants {
		if _, ok := m.memberships[membershipKey(userID, id)]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (TenantDetail, error) {
	t, ok := m.tenants[id]
	if !ok {
		return TenantDetail{}, fmt.Errorf("%w: tenant %d", httpx.ErrNotFound, id)
	}
	return TenantDetail{Tenant: t}, nil
}

func (tx *memoryTx) InsertTenant(_ context.Context, name string) (Tenant, error) {
	tx.store.nextID++
	t := Tenant{ID: tx.store.nextID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	tx.store.tenants[t.ID] = t
	return t, nil
}

func (tx *memoryTx) FindRoleIDByName(_ context.Context, name string) (int64, error) {
	id, ok := tx.store.roles[name]
	if !ok {
		return 0, fmt.Errorf("%w: role %q", httpx.ErrNotFound, name)
	}
	return id, nil
}

func (tx *memoryTx) FindUserIDByEmail(_ context.Context, email string) (int64, error) {
	id, ok := tx.store.users[email]
	if !ok {
		return 0, fmt.Errorf("%w: user %s", httpx.ErrNotFound, email)
	}
	return id, nil
}

func (tx *memoryTx) InsertMembership(_ context.Context, userID, tenantID int64, roleID *int64) error {
	key := membershipKey(userID, tenantID)
	if _, exists := tx.store.memberships[key]; exists {
		return fmt.Errorf("%w: user is already a member of this tenant", httpx.ErrConflict)
	}
	tx.store.memberships[key] = roleID
	return nil
}

func (tx *memoryTx) DeleteMembership(_ context.Context, userID, tenantID int64) (int64, error) {
	key := membershipKey(userID, tenantID)
	if _, ok := tx.store.memberships[key]; !ok {
		return 0, nil
	}
	delete(tx.store.memberships, key)
	return 1, nil
}

var _ Store = (*memoryStore)(nil)

func TestCreateGrantsAdminRoleToOwner(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)

	tenant, err := svc.Create(context.Background(), "Smith Household", 10)
	require.NoError(t, err)
	require.NotZero(t, tenant.ID)

	roleID := store.memberships[membershipKey(10, tenant.ID)]
	require.NotNil(t, roleID)
	require.Equal(t, store.roles["admin"], *roleID)
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMemoryStore())

	_, err := svc.Create(context.Background(), "   ", 10)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateFailsWithoutAdminRole(t *testing.T) {
	store := newMemoryStore()
	delete(store.roles, "admin")
	svc := NewService(store)

	_, err := svc.Create(context.Background(), "Smith Household", 10)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestInviteCreatesMembership(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.NoError(t, svc.Invite(ctx, tenant.ID, "Guest@Example.com", "viewer"))
	roleID := store.memberships[membershipKey(11, tenant.ID)]
	require.NotNil(t, roleID)
	require.Equal(t, store.roles["viewer"], *roleID)
}

func TestInviteWithoutRole(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.NoError(t, svc.Invite(ctx, tenant.ID, "guest@example.com", ""))
	key := membershipKey(11, tenant.ID)
	_, exists := store.memberships[key]
	require.True(t, exists)
	require.Nil(t, store.memberships[key])
}

func TestInviteUnknownRole(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Invite(ctx, tenant.ID, "guest@example.com", "chef"), httpx.ErrValidation)
}

func TestInviteExistingMemberConflicts(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.NoError(t, svc.Invite(ctx, tenant.ID, "guest@example.com", ""))
	require.ErrorIs(t, svc.Invite(ctx, tenant.ID, "guest@example.com", ""), httpx.ErrConflict)
}

func TestInviteUnknownUser(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Invite(ctx, tenant.ID, "nobody@example.com", ""), httpx.ErrNotFound)
}

func TestLeave(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, "Smith Household", 10)
	require.NoError(t, err)

	require.NoError(t, svc.Leave(ctx, tenant.ID, 10))
	require.ErrorIs(t, svc.Leave(ctx, tenant.ID, 10), httpx.ErrNotFound)
}
