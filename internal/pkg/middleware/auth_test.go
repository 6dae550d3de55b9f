package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/internal/pkg/tenantcontext"
	"github.com/BizCoreHQ/bizcore/internal/pkg/token"
)

type stubVerifier struct {
	identity *token.Identity
	err      error
}

func (s *stubVerifier) Parse(tokenStr string) (*token.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

type stubUserRepo struct {
	user *models.TenantUser
	err  error
}

func (s *stubUserRepo) Create(u *models.TenantUser) error { return nil }
func (s *stubUserRepo) GetByID(id uint) (*models.TenantUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}
func (s *stubUserRepo) GetByEmail(email string) (*models.TenantUser, error) {
	return s.GetByID(0)
}
func (s *stubUserRepo) GetWithTenant(id uint) (*models.TenantUser, error) { return s.GetByID(id) }
func (s *stubUserRepo) Update(u *models.TenantUser) error                 { return nil }
func (s *stubUserRepo) DeleteByTenant(tenantID uint) error                { return nil }
func (s *stubUserRepo) CountByTenant(tenantID uint) (int64, error)        { return 0, nil }

type stubTenantRepo struct {
	tenant *models.Tenant
	err    error
}

func (s *stubTenantRepo) Create(t *models.Tenant) error { return nil }
func (s *stubTenantRepo) GetByID(id uint) (*models.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tenant, nil
}
func (s *stubTenantRepo) GetBySlug(slug string) (*models.Tenant, error)        { return s.GetByID(0) }
func (s *stubTenantRepo) Update(t *models.Tenant) error                        { return nil }
func (s *stubTenantRepo) UpdateStatus(id uint, from, to string) (bool, error)  { return false, nil }
func (s *stubTenantRepo) MarkProvisioned(id uint, databaseName string) error   { return nil }
func (s *stubTenantRepo) MarkProvisioningFailed(id uint, reason string) error  { return nil }
func (s *stubTenantRepo) Delete(id uint) error                                 { return nil }
func (s *stubTenantRepo) List(offset, limit int) ([]models.Tenant, error)      { return nil, nil }
func (s *stubTenantRepo) Count() (int64, error)                                { return 0, nil }
func (s *stubTenantRepo) ExpiredTrials(now time.Time) ([]models.Tenant, error) { return nil, nil }
func (s *stubTenantRepo) TrialsExpiringWithin(now time.Time, w time.Duration) ([]models.Tenant, error) {
	return nil, nil
}

type stubPools struct {
	db  *gorm.DB
	err error
}

func (s *stubPools) Get(databaseName string) (*gorm.DB, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.db, nil
}

func routableTenant() *models.Tenant {
	return &models.Tenant{
		ID:                 7,
		Slug:               "acme",
		Status:             models.TenantStatusActive,
		DatabaseName:       "biz_acme",
		SetupComplete:      true,
		ProvisioningStatus: models.ProvisioningComplete,
	}
}

func activeUser() *models.TenantUser {
	return &models.TenantUser{ID: 42, TenantID: 7, Role: models.RoleOwner, Status: models.UserStatusActive}
}

func newAuthApp(deps AuthDeps) *fiber.App {
	app := fiber.New()
	app.Get("/protected", TenantAuth(deps), func(c *fiber.Ctx) error {
		tc := tenantcontext.Get(c)
		return c.JSON(fiber.Map{"tenant": tc.TenantSlug, "user": tc.UserID})
	})
	return app
}

func authedRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer sometoken")
	return req
}

func dummyDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{})
	assert.NoError(t, err)
	return db
}

func TestTenantAuth_MissingToken(t *testing.T) {
	app := newAuthApp(AuthDeps{Tokens: &stubVerifier{}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTenantAuth_MalformedAuthorizationHeader(t *testing.T) {
	app := newAuthApp(AuthDeps{Tokens: &stubVerifier{}})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Basic dXNlcjpwYXNz")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTenantAuth_InvalidToken(t *testing.T) {
	app := newAuthApp(AuthDeps{Tokens: &stubVerifier{err: token.ErrInvalidToken}})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTenantAuth_UnknownUser(t *testing.T) {
	app := newAuthApp(AuthDeps{
		Tokens: &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:  &stubUserRepo{err: gorm.ErrRecordNotFound},
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTenantAuth_InactiveUser(t *testing.T) {
	user := activeUser()
	user.Status = models.UserStatusInactive
	app := newAuthApp(AuthDeps{
		Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:   &stubUserRepo{user: user},
		Tenants: &stubTenantRepo{tenant: routableTenant()},
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTenantAuth_SuspendedTenant(t *testing.T) {
	tenant := routableTenant()
	tenant.Status = models.TenantStatusSuspended
	app := newAuthApp(AuthDeps{
		Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:   &stubUserRepo{user: activeUser()},
		Tenants: &stubTenantRepo{tenant: tenant},
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTenantAuth_ExpiredTenant(t *testing.T) {
	for _, status := range []string{models.TenantStatusCancelled, models.TenantStatusExpired} {
		tenant := routableTenant()
		tenant.Status = status
		app := newAuthApp(AuthDeps{
			Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42}},
			Users:   &stubUserRepo{user: activeUser()},
			Tenants: &stubTenantRepo{tenant: tenant},
		})

		resp, err := app.Test(authedRequest())
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, "status %s", status)
	}
}

func TestTenantAuth_NotProvisionedYet(t *testing.T) {
	tenant := routableTenant()
	tenant.SetupComplete = false
	tenant.ProvisioningStatus = models.ProvisioningPending
	app := newAuthApp(AuthDeps{
		Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:   &stubUserRepo{user: activeUser()},
		Tenants: &stubTenantRepo{tenant: tenant},
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestTenantAuth_PoolUnavailable(t *testing.T) {
	app := newAuthApp(AuthDeps{
		Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:   &stubUserRepo{user: activeUser()},
		Tenants: &stubTenantRepo{tenant: routableTenant()},
		Pools:   &stubPools{err: errors.New("dial failed")},
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestTenantAuth_Success(t *testing.T) {
	var counted []uint
	app := newAuthApp(AuthDeps{
		Tokens:  &stubVerifier{identity: &token.Identity{UserID: 42, TenantID: 7}},
		Users:   &stubUserRepo{user: activeUser()},
		Tenants: &stubTenantRepo{tenant: routableTenant()},
		Pools:   &stubPools{db: dummyDB(t)},
		Usage:   func(tenantID uint) { counted = append(counted, tenantID) },
	})

	resp, err := app.Test(authedRequest())
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []uint{7}, counted)
}

func TestOperatorAuth_RequiresAdminRole(t *testing.T) {
	user := activeUser()
	user.Role = models.RoleOwner
	app := fiber.New()
	app.Get("/admin", OperatorAuth(AuthDeps{
		Tokens: &stubVerifier{identity: &token.Identity{UserID: 42}},
		Users:  &stubUserRepo{user: user},
	}), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer sometoken")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

// Operator routes act on the registry; they must work even when the
// operator's own tenant is not routable.
func TestOperatorAuth_SkipsTenantRouting(t *testing.T) {
	user := activeUser()
	user.Role = models.RoleAdmin
	app := fiber.New()
	app.Get("/admin", OperatorAuth(AuthDeps{
		Tokens: &stubVerifier{identity: &token.Identity{UserID: 42, TenantSlug: "ops"}},
		Users:  &stubUserRepo{user: user},
		// No Tenants, no Pools: OperatorAuth must not need them.
	}), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer sometoken")
	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
