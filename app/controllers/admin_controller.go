package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/billing"
	"github.com/BizCoreHQ/bizcore/internal/pkg/middleware"
	"github.com/BizCoreHQ/bizcore/internal/pkg/provisioner"
	"github.com/BizCoreHQ/bizcore/internal/pkg/statistics"
)

// AdminController serves registry-level administrative endpoints. These
// operate on the registry directly and never touch per-tenant pools, except
// to tear one down on deletion.
type AdminController struct {
	repos       *repository.Repositories
	billing     *billing.Service
	provisioner *provisioner.Provisioner
	runner      *provisioner.Runner
	pools       PoolCloser
	cache       middleware.TenantCache
	trialDays   int
}

// PoolCloser is the slice of the pool router deletion needs.
type PoolCloser interface {
	Close(databaseName string) error
}

func NewAdminController(repos *repository.Repositories, billingSvc *billing.Service, prov *provisioner.Provisioner, runner *provisioner.Runner, pools PoolCloser, cache middleware.TenantCache, trialDays int) *AdminController {
	return &AdminController{
		repos:       repos,
		billing:     billingSvc,
		provisioner: prov,
		runner:      runner,
		pools:       pools,
		cache:       cache,
		trialDays:   trialDays,
	}
}

// HandleListTenants returns a paginated tenant listing.
func (ac *AdminController) HandleListTenants(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := 50

	tenants, err := ac.repos.Tenant.List((page-1)*limit, limit)
	if err != nil {
		log.Errorf("admin: tenant list failed: %v", err)
		return internalError(c, "Failed to list tenants")
	}
	total, err := ac.repos.Tenant.Count()
	if err != nil {
		log.Errorf("admin: tenant count failed: %v", err)
		return internalError(c, "Failed to list tenants")
	}

	return c.JSON(fiber.Map{"tenants": tenants, "total": total, "page": page})
}

type createTenantRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`
}

// HandleCreateTenant creates a tenant without a signup flow, for operator
// onboarding.
func (ac *AdminController) HandleCreateTenant(c *fiber.Ctx) error {
	var req createTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	tenant, err := models.NewTenant(req.Name, req.Slug, req.ContactEmail, ac.trialDays)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := ac.repos.Tenant.Create(tenant); err != nil {
		if isDuplicateKey(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Slug already taken"})
		}
		log.Errorf("admin: tenant insert failed: %v", err)
		return internalError(c, "Failed to create tenant")
	}

	ac.runner.Run(tenant.ID, tenant.Slug)

	return c.Status(fiber.StatusCreated).JSON(tenant)
}

// HandleSuspend moves a tenant to suspended. The auth gateway rejects its
// requests on the next lookup.
func (ac *AdminController) HandleSuspend(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	if tenant.IsTerminal() {
		return badRequest(c, "Tenant is in a terminal state")
	}

	if _, err := ac.repos.Tenant.UpdateStatus(tenant.ID, tenant.Status, models.TenantStatusSuspended); err != nil {
		log.Errorf("admin: suspend failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to suspend tenant")
	}
	ac.invalidate(tenant.ID)

	return c.JSON(fiber.Map{"slug": tenant.Slug, "status": models.TenantStatusSuspended})
}

// HandleReactivate lifts a suspension. The tenant returns to active when it
// has a live subscription, otherwise back to trial.
func (ac *AdminController) HandleReactivate(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	if tenant.Status != models.TenantStatusSuspended {
		return badRequest(c, "Tenant is not suspended")
	}

	target := models.TenantStatusTrial
	if sub, err := ac.billing.CurrentSubscription(tenant.ID); err == nil && !sub.IsTerminal() {
		target = models.TenantStatusActive
	}

	if _, err := ac.repos.Tenant.UpdateStatus(tenant.ID, models.TenantStatusSuspended, target); err != nil {
		log.Errorf("admin: reactivate failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to reactivate tenant")
	}
	ac.invalidate(tenant.ID)

	return c.JSON(fiber.Map{"slug": tenant.Slug, "status": target})
}

type cancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// HandleCancelSubscription cancels the tenant's subscription immediately or
// at period end.
func (ac *AdminController) HandleCancelSubscription(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	sub, err := ac.billing.Cancel(tenant.ID, req.AtPeriodEnd, models.HistoryActorOperator)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoSubscription):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Tenant has no subscription"})
		case errors.Is(err, billing.ErrTerminalState), errors.Is(err, billing.ErrCancelNotActive):
			return badRequest(c, err.Error())
		}
		log.Errorf("admin: cancel failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to cancel subscription")
	}
	ac.invalidate(tenant.ID)

	return c.JSON(fiber.Map{"slug": tenant.Slug, "subscription_status": sub.Status, "cancel_at_period_end": sub.CancelAtPeriodEnd})
}

// HandleRecordPayment marks the current billing period as settled.
func (ac *AdminController) HandleRecordPayment(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	sub, err := ac.billing.RecordPayment(tenant.ID, models.HistoryActorOperator)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoSubscription):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Tenant has no subscription"})
		case errors.Is(err, billing.ErrTerminalState):
			return badRequest(c, err.Error())
		}
		log.Errorf("admin: record payment failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to record payment")
	}
	ac.invalidate(tenant.ID)

	return c.JSON(fiber.Map{"slug": tenant.Slug, "subscription_status": sub.Status, "next_billing_date": sub.NextBillingDate})
}

// HandleRetryProvision re-invokes provisioning for a tenant whose setup
// failed. Safe because every provisioning step is idempotent.
func (ac *AdminController) HandleRetryProvision(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	if tenant.SetupComplete {
		return badRequest(c, "Tenant is already provisioned")
	}

	ac.runner.Run(tenant.ID, tenant.Slug)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"slug": tenant.Slug, "provisioning_status": models.ProvisioningPending})
}

// HandleDeleteTenant retires a tenant: user rows are removed, the tenant row
// is soft-deleted so its slug and database name stay reserved forever, the
// pool is closed, and the physical database is dropped best-effort.
func (ac *AdminController) HandleDeleteTenant(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	if err := ac.repos.TenantUser.DeleteByTenant(tenant.ID); err != nil {
		log.Errorf("admin: user delete failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to delete tenant")
	}
	if err := ac.repos.Tenant.Delete(tenant.ID); err != nil {
		log.Errorf("admin: tenant delete failed for %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to delete tenant")
	}
	ac.invalidate(tenant.ID)

	if tenant.DatabaseName != "" {
		if err := ac.pools.Close(tenant.DatabaseName); err != nil {
			log.Warnf("admin: pool close failed for %s: %v", tenant.DatabaseName, err)
		}
		// The registry row is retired; dropping the orphaned database is
		// best-effort and not retried automatically.
		go func(dbName string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := ac.provisioner.Deprovision(ctx, dbName); err != nil {
				log.Errorf("admin: deprovision of %s failed: %v", dbName, err)
			}
		}(tenant.DatabaseName)
	}

	return c.JSON(fiber.Map{"slug": tenant.Slug, "deleted": true})
}

// HandleStats returns cached registry aggregates for the operator dashboard.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	return c.JSON(statistics.GetStatisticsData())
}

// HandleTenantHistory returns the full subscription transition trail for a
// tenant, oldest first.
func (ac *AdminController) HandleTenantHistory(c *fiber.Ctx) error {
	tenant, err := ac.tenantFromSlug(c)
	if err != nil {
		return tenantError(c, err)
	}

	entries, err := ac.repos.History.ListByTenant(tenant.ID)
	if err != nil {
		log.Errorf("admin: history lookup failed for tenant %s: %v", tenant.Slug, err)
		return internalError(c, "Failed to load history")
	}

	return c.JSON(fiber.Map{"slug": tenant.Slug, "history": entries})
}

func (ac *AdminController) tenantFromSlug(c *fiber.Ctx) (*models.Tenant, error) {
	return ac.repos.Tenant.GetBySlug(c.Params("slug"))
}

func (ac *AdminController) invalidate(tenantID uint) {
	if ac.cache != nil {
		ac.cache.Invalidate(tenantID)
	}
}

func tenantError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Tenant not found"})
	}
	log.Errorf("admin: tenant lookup failed: %v", err)
	return internalError(c, "Tenant lookup failed")
}
