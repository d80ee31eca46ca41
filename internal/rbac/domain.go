// Package rbac implements the tenant-scoped role based access control engine:
// the permission catalog, role management, per-membership role assignment,
// the authorization resolver and the HTTP request guard.
package rbac

import "time"

// Permission represents an atomic capability, named "<resource>:<action>".
type Permission struct {
	ID          int64
	Name        string
	Resource    string
	Action      string
	Description string
}

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleDetail carries a role together with its permission bundle and the
// number of memberships currently referencing it.
type RoleDetail struct {
	Role
	Permissions     []Permission
	MembershipCount int64
}

// Membership binds a user to a tenant, optionally carrying one role.
type Membership struct {
	UserID    int64
	TenantID  int64
	RoleID    *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MembershipDetail is a membership with its role and permissions attached.
type MembershipDetail struct {
	Membership
	Role        *Role
	Permissions []Permission
}

// PermissionName joins a resource and action into the canonical form.
func PermissionName(resource, action string) string {
	return resource + ":" + action
}
