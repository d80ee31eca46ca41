// Package recipes implements the tenant-scoped recipe catalog. Every
// operation is bound to one tenant and guarded by a recipe permission.
package recipes

import "time"

// Recipe is a dish belonging to a single tenant. Slug is derived from
// the name and unique per tenant.
type Recipe struct {
	ID           int64
	TenantID     int64
	Name         string
	Slug         string
	Description  string
	Servings     int
	Ingredients  []string
	Instructions string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
