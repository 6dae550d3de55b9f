package tenantcontext

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TenantContext is the authenticated identity attached to a request by the
// tenant auth middleware. Business handlers receive exactly this plus the
// tenant-scoped database handle, nothing more.
type TenantContext struct {
	UserID     uint   `json:"user_id"`
	TenantID   uint   `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
	Role       string `json:"role"`
	Authed     bool   `json:"authed"`
}

// Get retrieves the tenant context from the fiber context.
// Returns an anonymous context if none is set.
func Get(c *fiber.Ctx) TenantContext {
	if ctx := c.Locals(KeyTenantContext); ctx != nil {
		return ctx.(TenantContext)
	}
	return TenantContext{}
}

// Set attaches the tenant context and its individual fields to Locals.
func Set(c *fiber.Ctx, tc TenantContext) {
	c.Locals(KeyTenantContext, tc)
	c.Locals(KeyUserID, tc.UserID)
	c.Locals(KeyTenantID, tc.TenantID)
	c.Locals(KeyTenantSlug, tc.TenantSlug)
	c.Locals(KeyRole, tc.Role)
}

// SetDB attaches the tenant-scoped pool handle to the request.
func SetDB(c *fiber.Ctx, db *gorm.DB) {
	c.Locals(KeyTenantDB, db)
}

// DB returns the tenant-scoped pool for the request, or nil when the request
// never passed the tenant auth middleware.
func DB(c *fiber.Ctx) *gorm.DB {
	if db, ok := c.Locals(KeyTenantDB).(*gorm.DB); ok {
		return db
	}
	return nil
}

// TenantID returns the authenticated tenant's registry ID, or 0.
func TenantID(c *fiber.Ctx) uint {
	return Get(c).TenantID
}

// IsAuthenticated reports whether the request carries a verified identity.
func IsAuthenticated(c *fiber.Ctx) bool {
	return Get(c).Authed
}
