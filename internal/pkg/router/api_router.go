package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/BizCoreHQ/bizcore/app/controllers"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/constants"
	"github.com/BizCoreHQ/bizcore/internal/pkg/middleware"
)

// Deps carries everything the route groups need, assembled in cmd.
type Deps struct {
	Repos   *repository.Repositories
	Tenants *controllers.TenantController
	Admin   *controllers.AdminController
	Auth    middleware.AuthDeps
}

type ApiRouter struct {
	deps Deps
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	v1 := app.Group(constants.APIPrefix, limiter.New())

	// Public endpoints.
	v1.Post("/signup", h.deps.Tenants.HandleSignup)
	v1.Post("/login", h.deps.Tenants.HandleLogin)
	v1.Get("/plans", h.deps.Tenants.HandleListPlans)

	// Tenant-scoped endpoints: the auth gateway resolves the tenant and
	// attaches its pool before any handler runs.
	tenantAuth := middleware.TenantAuth(h.deps.Auth)
	v1.Get("/account", tenantAuth, h.deps.Tenants.HandleAccount)
	v1.Post("/users", tenantAuth, h.deps.Tenants.HandleCreateUser)

	paid := middleware.RequirePaid(middleware.PaidDeps{
		Tenants:       h.deps.Repos.Tenant,
		Subscriptions: h.deps.Repos.Subscription,
	})
	v1.Get("/data/summary", tenantAuth, paid, h.deps.Tenants.HandleDemoQuery)

	// Registry-level administration; never routed through tenant pools.
	admin := v1.Group(constants.AdminPrefix, middleware.OperatorAuth(h.deps.Auth))
	admin.Get("/stats", h.deps.Admin.HandleStats)
	admin.Get("/tenants", h.deps.Admin.HandleListTenants)
	admin.Post("/tenants", h.deps.Admin.HandleCreateTenant)
	admin.Post("/tenants/:slug/suspend", h.deps.Admin.HandleSuspend)
	admin.Post("/tenants/:slug/reactivate", h.deps.Admin.HandleReactivate)
	admin.Post("/tenants/:slug/cancel", h.deps.Admin.HandleCancelSubscription)
	admin.Post("/tenants/:slug/payments", h.deps.Admin.HandleRecordPayment)
	admin.Post("/tenants/:slug/provision", h.deps.Admin.HandleRetryProvision)
	admin.Get("/tenants/:slug/history", h.deps.Admin.HandleTenantHistory)
	admin.Delete("/tenants/:slug", h.deps.Admin.HandleDeleteTenant)
}
