package billing

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
)

var (
	ErrPlanNotFound        = errors.New("billing: plan not found or inactive")
	ErrNoSubscription      = errors.New("billing: tenant has no subscription")
	ErrTerminalState       = errors.New("billing: subscription is in a terminal state")
	ErrCancelNotActive     = errors.New("billing: cancel-at-period-end requires an active subscription")
	ErrAlreadySubscribed   = errors.New("billing: tenant already has a live subscription")
)

// Service drives subscription billing operations against the registry.
// Payments are modeled as already-settled facts; recording one is a state
// transition, not a gateway call.
type Service struct {
	tenants repository.TenantRepository
	plans   repository.PlanRepository
	subs    repository.SubscriptionRepository
	history repository.HistoryRepository
}

// NewService creates a billing service from injected repositories.
func NewService(repos *repository.Repositories) *Service {
	return &Service{
		tenants: repos.Tenant,
		plans:   repos.Plan,
		subs:    repos.Subscription,
		history: repos.History,
	}
}

// Subscribe creates a new subscription row for the tenant on the given plan
// and moves the tenant to active. A tenant whose previous subscription is
// terminal gets a fresh row; the old one stays for history.
func (s *Service) Subscribe(tenantID uint, planCode string, actor string) (*models.Subscription, error) {
	plan, err := s.plans.GetByCode(planCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	current, err := s.subs.CurrentByTenant(tenantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if current != nil && !current.IsTerminal() {
		return nil, ErrAlreadySubscribed
	}

	now := time.Now()
	periodEnd := plan.PeriodEnd(now)
	sub := &models.Subscription{
		TenantID:           tenantID,
		PlanID:             plan.ID,
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		NextBillingDate:    periodEnd,
	}
	if err := s.subs.Create(sub); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	tenant.Status = models.TenantStatusActive
	if err := s.tenants.Update(tenant); err != nil {
		return nil, err
	}

	s.appendHistory(sub, models.HistoryActionSubscribed, "", models.SubscriptionStatusActive, actor, "plan "+plan.Code)
	return sub, nil
}

// RecordPayment settles the current billing period: past_due returns to
// active, the grace window is cleared, and the period advances by one plan
// cycle.
func (s *Service) RecordPayment(tenantID uint, actor string) (*models.Subscription, error) {
	sub, err := s.subs.CurrentByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrTerminalState
	}

	plan, err := s.plans.GetByID(sub.PlanID)
	if err != nil {
		return nil, err
	}

	fromStatus := sub.Status
	start := sub.NextBillingDate
	end := plan.PeriodEnd(start)

	sub.Status = models.SubscriptionStatusActive
	sub.GracePeriodEnd = nil
	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = end
	sub.NextBillingDate = end
	if err := s.subs.Update(sub); err != nil {
		return nil, err
	}

	// A settled payment moves a trialing tenant onto the paid plan. A
	// suspended tenant stays suspended; that is an administrative state.
	if _, err := s.tenants.UpdateStatus(tenantID, models.TenantStatusTrial, models.TenantStatusActive); err != nil {
		return nil, err
	}

	s.appendHistory(sub, models.HistoryActionPaymentRecorded, fromStatus, models.SubscriptionStatusActive, actor, "")
	return sub, nil
}

// Cancel ends the subscription, immediately or at period end. Immediate
// cancellation cascades the tenant to cancelled; at-period-end only flags
// the row for the scheduler's fourth pass.
func (s *Service) Cancel(tenantID uint, atPeriodEnd bool, actor string) (*models.Subscription, error) {
	sub, err := s.subs.CurrentByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if sub.IsTerminal() {
		return nil, ErrTerminalState
	}

	if atPeriodEnd {
		if sub.Status != models.SubscriptionStatusActive {
			return nil, ErrCancelNotActive
		}
		sub.CancelAtPeriodEnd = true
		if err := s.subs.Update(sub); err != nil {
			return nil, err
		}
		return sub, nil
	}

	fromStatus := sub.Status
	if _, err := s.subs.MarkCancelled(sub.ID, fromStatus); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatusCancelled
	sub.GracePeriodEnd = nil

	// Subscription terminal states always cascade to the tenant.
	tenant, err := s.tenants.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	tenant.Status = models.TenantStatusCancelled
	if err := s.tenants.Update(tenant); err != nil {
		return nil, err
	}

	s.appendHistory(sub, models.HistoryActionCancelled, fromStatus, models.SubscriptionStatusCancelled, actor, "cancelled by request")
	return sub, nil
}

// CurrentSubscription returns the tenant's latest subscription row.
func (s *Service) CurrentSubscription(tenantID uint) (*models.Subscription, error) {
	sub, err := s.subs.CurrentByTenant(tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	return sub, nil
}

// History returns the tenant's full audit trail.
func (s *Service) History(tenantID uint) ([]models.SubscriptionHistory, error) {
	return s.history.ListByTenant(tenantID)
}

func (s *Service) appendHistory(sub *models.Subscription, action, from, to, actor, reason string) {
	entry := &models.SubscriptionHistory{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		Actor:          actor,
		Reason:         reason,
	}
	// History is an audit trail, not a transaction participant; a failed
	// append must not undo the transition it records.
	if err := s.history.Append(entry); err != nil {
		log.Errorf("[Billing] Failed to append history for subscription %d: %v", sub.ID, err)
	}
}
