package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/tenantcontext"
	"github.com/BizCoreHQ/bizcore/internal/pkg/token"
)

// TokenVerifier decodes a bearer credential into an identity.
type TokenVerifier interface {
	Parse(tokenStr string) (*token.Identity, error)
}

// PoolGetter resolves a tenant database name to a live pool.
type PoolGetter interface {
	Get(databaseName string) (*gorm.DB, error)
}

// AuthDeps wires the gateway to its collaborators. The pool router is
// injected here by the composition root rather than reached through a
// package global.
type AuthDeps struct {
	Tokens  TokenVerifier
	Users   repository.TenantUserRepository
	Tenants repository.TenantRepository
	Pools   PoolGetter
	// Cache is optional; when set, tenant rows are served cache-aside with a
	// short TTL so the hot path does not join the registry on every request.
	Cache TenantCache
	// Usage is optional; when set, it is called once per authenticated
	// request with the tenant ID. Failures inside it must not surface here.
	Usage func(tenantID uint)
}

// TenantAuth is the authentication gateway: it verifies the bearer
// credential, resolves it to a tenant-user joined to its tenant, gates on
// tenant status, and attaches the tenant's routed pool to the request.
func TenantAuth(deps AuthDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractBearer(c)
		if tokenStr == "" {
			return unauthorized(c, "Missing bearer token")
		}

		identity, err := deps.Tokens.Parse(tokenStr)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		user, tenant, err := resolveUser(deps, identity.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden(c, "invalid_credentials", "Account not found")
			}
			log.Errorf("tenant auth lookup failed for user %d: %v", identity.UserID, err)
			return internalError(c, "Account lookup failed")
		}

		if !user.IsActive() {
			return forbidden(c, "invalid_credentials", "Account inactive")
		}

		switch tenant.Status {
		case models.TenantStatusSuspended:
			return forbidden(c, "account_suspended", "Account suspended, please contact support")
		case models.TenantStatusCancelled, models.TenantStatusExpired:
			return forbidden(c, "subscription_expired", "Subscription expired, please renew")
		}

		// Routability is driven by the durable provisioning status, not by
		// any in-memory completion signal. Reject-until-ready: a request
		// racing a slow provisioner gets a clean 503, never a half-built
		// schema.
		if !tenant.IsRoutable() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "tenant_not_ready",
				"message": "Tenant setup is still in progress, try again shortly",
			})
		}

		db, err := deps.Pools.Get(tenant.DatabaseName)
		if err != nil {
			log.Errorf("pool unavailable for tenant %s (%s): %v", tenant.Slug, tenant.DatabaseName, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "pool_unavailable",
				"message": "Tenant database is currently unreachable",
			})
		}

		tenantcontext.Set(c, tenantcontext.TenantContext{
			UserID:     user.ID,
			TenantID:   tenant.ID,
			TenantSlug: tenant.Slug,
			Role:       user.Role,
			Authed:     true,
		})
		tenantcontext.SetDB(c, db)

		if deps.Usage != nil {
			deps.Usage(tenant.ID)
		}

		return c.Next()
	}
}

// OperatorAuth gates registry-level administrative routes. It verifies the
// credential and the admin role but skips tenant routing entirely:
// administrative operations act on the registry and must work even when the
// operator's own tenant is mid-provisioning or suspended.
func OperatorAuth(deps AuthDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := extractBearer(c)
		if tokenStr == "" {
			return unauthorized(c, "Missing bearer token")
		}

		identity, err := deps.Tokens.Parse(tokenStr)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		user, err := deps.Users.GetByID(identity.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden(c, "invalid_credentials", "Account not found")
			}
			log.Errorf("operator auth lookup failed for user %d: %v", identity.UserID, err)
			return internalError(c, "Account lookup failed")
		}
		if !user.IsActive() {
			return forbidden(c, "invalid_credentials", "Account inactive")
		}
		if user.Role != models.RoleAdmin {
			return forbidden(c, "invalid_credentials", "Administrator role required")
		}

		tenantcontext.Set(c, tenantcontext.TenantContext{
			UserID:     user.ID,
			TenantID:   user.TenantID,
			TenantSlug: identity.TenantSlug,
			Role:       user.Role,
			Authed:     true,
		})

		return c.Next()
	}
}

func resolveUser(deps AuthDeps, userID uint) (*models.TenantUser, *models.Tenant, error) {
	user, err := deps.Users.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}

	if deps.Cache != nil {
		if cached, ok := deps.Cache.Get(user.TenantID); ok {
			return user, cached, nil
		}
	}

	tenant, err := deps.Tenants.GetByID(user.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if deps.Cache != nil {
		deps.Cache.Set(tenant)
	}
	return user, tenant, nil
}

func extractBearer(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "code": "invalid_credentials", "message": message})
}

func forbidden(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "code": code, "message": message})
}

func internalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": message})
}
