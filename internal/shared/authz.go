package shared

// Permission names declared at route definition sites. Each constant is a
// "<resource>:<action>" pair matching a row seeded by the RBAC bootstrapper.
const (
	PermUserCreate = "user:create"
	PermUserRead   = "user:read"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermTenantCreate = "tenant:create"
	PermTenantRead   = "tenant:read"
	PermTenantUpdate = "tenant:update"
	PermTenantDelete = "tenant:delete"

	PermRoleCreate = "role:create"
	PermRoleRead   = "role:read"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"

	PermRecipeCreate = "recipe:create"
	PermRecipeRead   = "recipe:read"
	PermRecipeUpdate = "recipe:update"
	PermRecipeDelete = "recipe:delete"

	PermMealCreate = "meal:create"
	PermMealRead   = "meal:read"
	PermMealUpdate = "meal:update"
	PermMealDelete = "meal:delete"

	PermPlanCreate = "plan:create"
	PermPlanRead   = "plan:read"
	PermPlanUpdate = "plan:update"
	PermPlanDelete = "plan:delete"

	PermShoppingListCreate = "shopping-list:create"
	PermShoppingListRead   = "shopping-list:read"
	PermShoppingListUpdate = "shopping-list:update"
	PermShoppingListDelete = "shopping-list:delete"

	PermAnalyticsRead = "analytics:read"

	PermCollaborationCreate = "collaboration:create"
	PermCollaborationRead   = "collaboration:read"
	PermCollaborationUpdate = "collaboration:update"
	PermCollaborationDelete = "collaboration:delete"
)
