// Package tenants manages households and the memberships binding users to
// them. A membership is unique per (user, tenant) and optionally carries
// one role consumed by the RBAC engine.
package tenants

import "time"

// Tenant represents a household.
type Tenant struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member is a membership row with the member's identity attached.
type Member struct {
	UserID    int64
	Email     string
	Name      string
	RoleID    *int64
	RoleName  string
	CreatedAt time.Time
}

// TenantDetail is a tenant with its members.
type TenantDetail struct {
	Tenant
	Members []Member
}
