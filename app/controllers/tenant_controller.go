package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/billing"
	"github.com/BizCoreHQ/bizcore/internal/pkg/metrics/counter"
	"github.com/BizCoreHQ/bizcore/internal/pkg/provisioner"
	"github.com/BizCoreHQ/bizcore/internal/pkg/token"
)

// TenantController serves signup, login and account endpoints.
type TenantController struct {
	repos       *repository.Repositories
	billing     *billing.Service
	provisioner *provisioner.Runner
	signer      *token.Signer
	trialDays   int
}

func NewTenantController(repos *repository.Repositories, billingSvc *billing.Service, runner *provisioner.Runner, signer *token.Signer, trialDays int) *TenantController {
	return &TenantController{
		repos:       repos,
		billing:     billingSvc,
		provisioner: runner,
		signer:      signer,
		trialDays:   trialDays,
	}
}

type signupRequest struct {
	CompanyName  string `json:"company_name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contact_email"`
	OwnerName    string `json:"owner_name"`
	OwnerEmail   string `json:"owner_email"`
	Password     string `json:"password"`
	PlanCode     string `json:"plan_code"`
}

// HandleSignup creates the tenant registry row and the owner account, then
// kicks off database provisioning in the background. The response does not
// wait for provisioning.
func (tc *TenantController) HandleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	tenant, err := models.NewTenant(req.CompanyName, req.Slug, req.ContactEmail, tc.trialDays)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := tc.repos.Tenant.Create(tenant); err != nil {
		if isDuplicateKey(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Slug already taken"})
		}
		log.Errorf("signup: tenant insert failed: %v", err)
		return internalError(c, "Signup failed")
	}

	owner, err := models.NewTenantUser(tenant.ID, req.OwnerName, req.OwnerEmail, req.Password, models.RoleOwner)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := tc.repos.TenantUser.Create(owner); err != nil {
		if isDuplicateKey(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email already registered"})
		}
		log.Errorf("signup: owner insert failed: %v", err)
		return internalError(c, "Signup failed")
	}

	// Optional immediate plan selection; trial stays the default.
	planMarker := "trial"
	if req.PlanCode != "" {
		if _, err := tc.billing.Subscribe(tenant.ID, req.PlanCode, models.HistoryActorTenant); err != nil {
			if errors.Is(err, billing.ErrPlanNotFound) {
				return badRequest(c, "Unknown plan code")
			}
			log.Errorf("signup: subscribe failed for tenant %d: %v", tenant.ID, err)
			return internalError(c, "Signup failed")
		}
		planMarker = req.PlanCode
	}

	// Fire-and-record: the runner persists the outcome on the tenant row.
	tc.provisioner.Run(tenant.ID, tenant.Slug)

	signed, err := tc.signer.Issue(token.Identity{
		UserID:     owner.ID,
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
		Role:       owner.Role,
	})
	if err != nil {
		log.Errorf("signup: token issue failed: %v", err)
		return internalError(c, "Signup failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": signed,
		"tenant": fiber.Map{
			"slug":          tenant.Slug,
			"status":        tenant.Status,
			"trial_ends_at": tenant.TrialEndsAt,
			"plan":          planMarker,
		},
	})
}

// HandleListPlans returns the active plan catalog for the signup flow.
func (tc *TenantController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := tc.repos.Plan.ListActive()
	if err != nil {
		log.Errorf("plans: catalog lookup failed: %v", err)
		return internalError(c, "Failed to load plans")
	}

	return c.JSON(fiber.Map{"plans": plans})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies email/password and issues a session credential scoped
// to the user's tenant.
func (tc *TenantController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := tc.repos.TenantUser.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidCredentials(c)
		}
		log.Errorf("login: lookup failed: %v", err)
		return internalError(c, "Login failed")
	}

	if !user.IsActive() || !user.CheckPassword(req.Password) {
		return invalidCredentials(c)
	}

	tenant, err := tc.repos.Tenant.GetByID(user.TenantID)
	if err != nil {
		log.Errorf("login: tenant lookup failed for user %d: %v", user.ID, err)
		return internalError(c, "Login failed")
	}

	signed, err := tc.signer.Issue(token.Identity{
		UserID:     user.ID,
		TenantID:   tenant.ID,
		TenantSlug: tenant.Slug,
		Role:       user.Role,
	})
	if err != nil {
		log.Errorf("login: token issue failed: %v", err)
		return internalError(c, "Login failed")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := tc.repos.TenantUser.Update(user); err != nil {
		log.Warnf("login: failed to update last login for user %d: %v", user.ID, err)
	}
	if err := counter.AddUserLogin(user.ID); err != nil {
		log.Warnf("login: failed to count login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{
		"token": signed,
		"tenant": fiber.Map{
			"slug":   tenant.Slug,
			"status": tenant.Status,
		},
	})
}
