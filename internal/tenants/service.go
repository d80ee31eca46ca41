package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/pantryplan/pantryplan/internal/platform/httpx"
)

// AdminRoleName is the role granted to a tenant's creator.
const AdminRoleName = "admin"

// Service handles tenant and membership business logic.
type Service struct {
	store Store
}

// NewService builds Service instance.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create creates a tenant and binds the creator to it with the canonical
// admin role. Both writes happen in one transaction.
func (s *Service) Create(ctx context.Context, name string, ownerID int64) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, fmt.Errorf("%w: tenant name is required", httpx.ErrValidation)
	}
	var created Tenant
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		created, err = tx.InsertTenant(ctx, name)
		if err != nil {
			return err
		}
		roleID, err := tx.FindRoleIDByName(ctx, AdminRoleName)
		if err != nil {
			return fmt.Errorf("admin role missing, run the RBAC bootstrap: %w", err)
		}
		return tx.InsertMembership(ctx, ownerID, created.ID, &roleID)
	})
	if err != nil {
		return Tenant{}, err
	}
	return created, nil
}

// ListForUser returns the tenants the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Tenant, error) {
	return s.store.ListForUser(ctx, userID)
}

// Get loads a tenant with its members.
func (s *Service) Get(ctx context.Context, id int64) (TenantDetail, error) {
	return s.store.Get(ctx, id)
}

// Invite binds the user identified by email to the tenant. The membership
// is created with the named role, or without one when roleName is empty.
// An existing membership for the pair is a conflict.
func (s *Service) Invite(ctx context.Context, tenantID int64, email, roleName string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", httpx.ErrValidation)
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		userID, err := tx.FindUserIDByEmail(ctx, email)
		if err != nil {
			return err
		}
		var roleID *int64
		if roleName = strings.TrimSpace(roleName); roleName != "" {
			id, err := tx.FindRoleIDByName(ctx, roleName)
			if err != nil {
				return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, roleName)
			}
			roleID = &id
		}
		return tx.InsertMembership(ctx, userID, tenantID, roleID)
	})
}

// Leave removes the user's membership in the tenant.
func (s *Service) Leave(ctx context.Context, tenantID, userID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		rows, err := tx.DeleteMembership(ctx, userID, tenantID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: membership for user %d in tenant %d", httpx.ErrNotFound, userID, tenantID)
		}
		return nil
	})
}
