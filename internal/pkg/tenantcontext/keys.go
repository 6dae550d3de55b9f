package tenantcontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyTenantContext = "TENANT_CONTEXT"
	KeyTenantDB      = "TENANT_DB"
	KeyUserID        = "user_id"
	KeyTenantID      = "tenant_id"
	KeyTenantSlug    = "tenant_slug"
	KeyRole          = "role"
)
