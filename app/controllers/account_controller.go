package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/internal/pkg/billing"
	"github.com/BizCoreHQ/bizcore/internal/pkg/entitlements"
	"github.com/BizCoreHQ/bizcore/internal/pkg/tenantcontext"
)

// HandleAccount returns the authenticated identity plus tenant and
// subscription state. Runs behind the tenant auth middleware.
func (tc *TenantController) HandleAccount(c *fiber.Ctx) error {
	ctx := tenantcontext.Get(c)

	tenant, err := tc.repos.Tenant.GetByID(ctx.TenantID)
	if err != nil {
		log.Errorf("account: tenant lookup failed for %d: %v", ctx.TenantID, err)
		return internalError(c, "Account lookup failed")
	}

	response := fiber.Map{
		"user_id": ctx.UserID,
		"role":    ctx.Role,
		"tenant": fiber.Map{
			"slug":           tenant.Slug,
			"name":           tenant.Name,
			"status":         tenant.Status,
			"trial_ends_at":  tenant.TrialEndsAt,
			"setup_complete": tenant.SetupComplete,
		},
	}

	sub, err := tc.billing.CurrentSubscription(ctx.TenantID)
	if err != nil && !errors.Is(err, billing.ErrNoSubscription) {
		log.Errorf("account: subscription lookup failed for tenant %d: %v", ctx.TenantID, err)
		return internalError(c, "Account lookup failed")
	}
	if sub != nil {
		response["subscription"] = fiber.Map{
			"status":               sub.Status,
			"current_period_end":   sub.CurrentPeriodEnd,
			"next_billing_date":    sub.NextBillingDate,
			"grace_period_end":     sub.GracePeriodEnd,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
		}
	}

	return c.JSON(response)
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// HandleCreateUser adds a member account to the caller's tenant, enforcing
// the seat allowance of the tenant's plan. Trial tenants get the trial
// allowance.
func (tc *TenantController) HandleCreateUser(c *fiber.Ctx) error {
	ctx := tenantcontext.Get(c)

	if ctx.Role != models.RoleOwner && ctx.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Only owners may add users",
		})
	}

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleMember && req.Role != models.RoleOwner {
		return badRequest(c, "Invalid role")
	}

	limits, err := tc.tenantLimits(ctx.TenantID)
	if err != nil {
		log.Errorf("create user: limits lookup failed for tenant %d: %v", ctx.TenantID, err)
		return internalError(c, "User creation failed")
	}

	current, err := tc.repos.TenantUser.CountByTenant(ctx.TenantID)
	if err != nil {
		log.Errorf("create user: seat count failed for tenant %d: %v", ctx.TenantID, err)
		return internalError(c, "User creation failed")
	}
	if !limits.SeatsAvailable(int(current)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "seat_limit_reached",
			"message": "Your plan has no seats left, upgrade to add more users",
		})
	}

	user, err := models.NewTenantUser(ctx.TenantID, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := tc.repos.TenantUser.Create(user); err != nil {
		if isDuplicateKey(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email already registered"})
		}
		log.Errorf("create user: insert failed for tenant %d: %v", ctx.TenantID, err)
		return internalError(c, "User creation failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (tc *TenantController) tenantLimits(tenantID uint) (entitlements.Limits, error) {
	sub, err := tc.billing.CurrentSubscription(tenantID)
	if err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			return entitlements.ForTrial(), nil
		}
		return entitlements.Limits{}, err
	}

	plan, err := tc.repos.Plan.GetByID(sub.PlanID)
	if err != nil {
		return entitlements.Limits{}, err
	}
	return entitlements.ForPlan(plan), nil
}

// HandleDemoQuery is the hand-off point business handlers plug in behind:
// it only proves the request carries a ready, tenant-scoped pool.
func (tc *TenantController) HandleDemoQuery(c *fiber.Ctx) error {
	db := tenantcontext.DB(c)
	if db == nil {
		return internalError(c, "No tenant database attached")
	}

	var count int64
	if err := db.Table("customers").Count(&count).Error; err != nil {
		// The pool fails lazily; an unreachable tenant database surfaces
		// here, on the first real query.
		log.Errorf("tenant query failed for %s: %v", tenantcontext.Get(c).TenantSlug, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "pool_unavailable",
			"message": "Tenant database is currently unreachable",
		})
	}

	return c.JSON(fiber.Map{"customers": count})
}
