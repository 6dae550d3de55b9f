package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/tenantcontext"
)

// PaidDeps wires the paid-state gate to the registry.
type PaidDeps struct {
	Tenants       repository.TenantRepository
	Subscriptions repository.SubscriptionRepository
}

// RequirePaid is the finer-grained gate for routes that need a paid (or
// still-trialing, or in-grace) state. It re-derives the answer from the
// subscription's dates rather than the coarse tenant status, and rejects
// with a payment-required signal distinct from the authentication
// rejections. Runs after TenantAuth.
func RequirePaid(deps PaidDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tc := tenantcontext.Get(c)
		if !tc.Authed {
			return unauthorized(c, "Missing bearer token")
		}

		now := time.Now()

		sub, err := deps.Subscriptions.CurrentByTenant(tc.TenantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// No subscription row yet: the tenant is on trial. Check
				// the trial clock directly.
				return gateOnTrial(c, deps, tc.TenantID, now)
			}
			log.Errorf("subscription lookup failed for tenant %d: %v", tc.TenantID, err)
			return internalError(c, "Subscription lookup failed")
		}

		switch {
		case sub.Status == models.SubscriptionStatusActive:
			return c.Next()
		case sub.InGracePeriod(now):
			return c.Next()
		default:
			return paymentRequired(c, "Subscription payment required")
		}
	}
}

func gateOnTrial(c *fiber.Ctx, deps PaidDeps, tenantID uint, now time.Time) error {
	tenant, err := deps.Tenants.GetByID(tenantID)
	if err != nil {
		log.Errorf("tenant lookup failed for %d: %v", tenantID, err)
		return internalError(c, "Tenant lookup failed")
	}
	if tenant.Status == models.TenantStatusTrial && tenant.TrialEndsAt != nil && now.Before(*tenant.TrialEndsAt) {
		return c.Next()
	}
	return paymentRequired(c, "Trial ended, please choose a plan")
}

func paymentRequired(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
		"error":   "payment_required",
		"code":    "payment_required",
		"message": message,
	})
}
