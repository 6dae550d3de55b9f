package repository

import (
	"time"

	"github.com/BizCoreHQ/bizcore/app/models"
)

// TenantRepository defines registry operations on tenant records.
type TenantRepository interface {
	Create(tenant *models.Tenant) error
	GetByID(id uint) (*models.Tenant, error)
	GetBySlug(slug string) (*models.Tenant, error)
	Update(tenant *models.Tenant) error
	UpdateStatus(id uint, fromStatus, toStatus string) (bool, error)
	MarkProvisioned(id uint, databaseName string) error
	MarkProvisioningFailed(id uint, reason string) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Tenant, error)
	Count() (int64, error)
	ExpiredTrials(now time.Time) ([]models.Tenant, error)
	TrialsExpiringWithin(now time.Time, window time.Duration) ([]models.Tenant, error)
}

// TenantUserRepository defines registry operations on tenant user accounts.
type TenantUserRepository interface {
	Create(user *models.TenantUser) error
	GetByID(id uint) (*models.TenantUser, error)
	GetByEmail(email string) (*models.TenantUser, error)
	GetWithTenant(id uint) (*models.TenantUser, error)
	Update(user *models.TenantUser) error
	DeleteByTenant(tenantID uint) error
	CountByTenant(tenantID uint) (int64, error)
}

// PlanRepository defines operations on the subscription plan catalog.
type PlanRepository interface {
	Create(plan *models.SubscriptionPlan) error
	GetByCode(code string) (*models.SubscriptionPlan, error)
	GetByID(id uint) (*models.SubscriptionPlan, error)
	ListActive() ([]models.SubscriptionPlan, error)
	Update(plan *models.SubscriptionPlan) error
}

// SubscriptionRepository defines operations on subscription rows, including
// the guarded bulk selections and conditional transitions the lifecycle
// scheduler is built on.
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	CurrentByTenant(tenantID uint) (*models.Subscription, error)
	Update(sub *models.Subscription) error

	// OverdueActive returns active subscriptions whose next billing date has
	// passed and which have no grace period set yet.
	OverdueActive(now time.Time) ([]models.Subscription, error)
	// GraceExpired returns past-due subscriptions whose grace period has ended.
	GraceExpired(now time.Time) ([]models.Subscription, error)
	// PeriodEndCancellations returns active subscriptions flagged
	// cancel-at-period-end whose current period has ended.
	PeriodEndCancellations(now time.Time) ([]models.Subscription, error)
	// BillingWithin returns active subscriptions billing inside the window.
	BillingWithin(now time.Time, window time.Duration) ([]models.Subscription, error)

	// MarkPastDue conditionally transitions an active subscription to
	// past_due setting the grace period end. Returns false when the row was
	// no longer in the expected state (already processed).
	MarkPastDue(id uint, graceEnd time.Time) (bool, error)
	// MarkCancelled conditionally transitions a subscription from the given
	// status to cancelled, clearing the grace period.
	MarkCancelled(id uint, fromStatus string) (bool, error)
}

// HistoryRepository appends and reads the immutable transition trail.
type HistoryRepository interface {
	Append(entry *models.SubscriptionHistory) error
	ListBySubscription(subscriptionID uint) ([]models.SubscriptionHistory, error)
	ListByTenant(tenantID uint) ([]models.SubscriptionHistory, error)
}

// Repositories holds all repository instances for the registry database.
type Repositories struct {
	Tenant       TenantRepository
	TenantUser   TenantUserRepository
	Plan         PlanRepository
	Subscription SubscriptionRepository
	History      HistoryRepository
}
