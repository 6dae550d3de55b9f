package scheduler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/BizCoreHQ/bizcore/app/models"
)

// Result summarizes one reconciliation run.
type Result struct {
	TrialsExpired      int
	MarkedPastDue      int
	GraceCancelled     int
	PeriodEndCancelled int
	Errors             []error
}

// RunOnce performs the four ordered passes. Each pass selects rows by their
// expected source status and transitions them with a guarded update, so rows
// moved to a terminal state by an earlier pass — or by a concurrent run —
// are skipped, and a crash between passes is recovered by the next run.
// A failure on one row is logged and retried next run; it never aborts the
// batch for other tenants.
func (m *Manager) RunOnce(now time.Time) Result {
	var res Result

	m.expireTrials(now, &res)
	m.enterPastDue(now, &res)
	m.expireGracePeriods(now, &res)
	m.applyScheduledCancellations(now, &res)

	return res
}

// Pass 1: trial tenants whose trial clock ran out become expired. Trials
// have no subscription row, so no history entry is written.
func (m *Manager) expireTrials(now time.Time, res *Result) {
	tenants, err := m.repos.Tenant.ExpiredTrials(now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("select expired trials: %w", err))
		return
	}

	for _, tenant := range tenants {
		moved, err := m.repos.Tenant.UpdateStatus(tenant.ID, models.TenantStatusTrial, models.TenantStatusExpired)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("expire trial tenant %d: %w", tenant.ID, err))
			log.Errorf("[Lifecycle Scheduler] Failed to expire trial for tenant %d: %v", tenant.ID, err)
			continue
		}
		if moved {
			res.TrialsExpired++
		}
	}
}

// Pass 2: active subscriptions past their billing date enter past_due and
// receive a grace window counted from this run.
func (m *Manager) enterPastDue(now time.Time, res *Result) {
	subs, err := m.repos.Subscription.OverdueActive(now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("select overdue subscriptions: %w", err))
		return
	}

	graceEnd := now.Add(time.Duration(m.graceDays) * 24 * time.Hour)
	for _, sub := range subs {
		moved, err := m.repos.Subscription.MarkPastDue(sub.ID, graceEnd)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("mark subscription %d past due: %w", sub.ID, err))
			log.Errorf("[Lifecycle Scheduler] Failed to mark subscription %d past due: %v", sub.ID, err)
			continue
		}
		if !moved {
			continue
		}
		res.MarkedPastDue++
		m.appendHistory(sub, models.HistoryActionPaymentOverdue,
			models.SubscriptionStatusActive, models.SubscriptionStatusPastDue, "payment overdue")
	}
}

// Pass 3: past-due subscriptions whose grace window ended are cancelled, and
// the owning tenant cascades to cancelled.
func (m *Manager) expireGracePeriods(now time.Time, res *Result) {
	subs, err := m.repos.Subscription.GraceExpired(now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("select grace-expired subscriptions: %w", err))
		return
	}

	for _, sub := range subs {
		moved, err := m.repos.Subscription.MarkCancelled(sub.ID, models.SubscriptionStatusPastDue)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("cancel subscription %d: %w", sub.ID, err))
			log.Errorf("[Lifecycle Scheduler] Failed to cancel subscription %d: %v", sub.ID, err)
			continue
		}
		if !moved {
			continue
		}
		res.GraceCancelled++
		m.cascadeTenantCancelled(sub.TenantID, res)
		m.appendHistory(sub, models.HistoryActionCancelled,
			models.SubscriptionStatusPastDue, models.SubscriptionStatusCancelled, "grace period ended")
	}
}

// Pass 4: subscriptions flagged cancel-at-period-end whose period has ended.
func (m *Manager) applyScheduledCancellations(now time.Time, res *Result) {
	subs, err := m.repos.Subscription.PeriodEndCancellations(now)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("select scheduled cancellations: %w", err))
		return
	}

	for _, sub := range subs {
		moved, err := m.repos.Subscription.MarkCancelled(sub.ID, models.SubscriptionStatusActive)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("apply scheduled cancellation %d: %w", sub.ID, err))
			log.Errorf("[Lifecycle Scheduler] Failed scheduled cancellation for subscription %d: %v", sub.ID, err)
			continue
		}
		if !moved {
			continue
		}
		res.PeriodEndCancelled++
		m.cascadeTenantCancelled(sub.TenantID, res)
		m.appendHistory(sub, models.HistoryActionCancelled,
			models.SubscriptionStatusActive, models.SubscriptionStatusCancelled, "period ended")
	}
}

// Reminders is the read-only pass: trials expiring within two days and
// subscriptions billing within three. Registry state is never mutated; the
// configured notifier handles delivery to tenant contacts.
func (m *Manager) Reminders(now time.Time) []string {
	var out []string

	tenants, err := m.repos.Tenant.TrialsExpiringWithin(now, trialReminderWindow)
	if err != nil {
		log.Errorf("[Lifecycle Scheduler] Trial reminder scan failed: %v", err)
	} else {
		for _, t := range tenants {
			out = append(out, fmt.Sprintf("trial for tenant %s expires at %s", t.Slug, t.TrialEndsAt.Format(time.RFC3339)))
			if m.notifier != nil && t.ContactEmail != "" {
				m.notifier.TrialExpiring(t.ContactEmail, t.Name, daysUntil(now, *t.TrialEndsAt))
			}
		}
	}

	subs, err := m.repos.Subscription.BillingWithin(now, billingReminderWindow)
	if err != nil {
		log.Errorf("[Lifecycle Scheduler] Billing reminder scan failed: %v", err)
	} else {
		for _, s := range subs {
			out = append(out, fmt.Sprintf("subscription %d for tenant %d bills at %s", s.ID, s.TenantID, s.NextBillingDate.Format(time.RFC3339)))
			if m.notifier == nil {
				continue
			}
			tenant, err := m.repos.Tenant.GetByID(s.TenantID)
			if err != nil || tenant.ContactEmail == "" {
				continue
			}
			m.notifier.BillingUpcoming(tenant.ContactEmail, tenant.Name, daysUntil(now, s.NextBillingDate))
		}
	}

	return out
}

// daysUntil rounds up, so a deadline 25 hours out counts as two days.
func daysUntil(now, deadline time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Subscription terminal states always cascade to the tenant; the reverse
// never happens.
func (m *Manager) cascadeTenantCancelled(tenantID uint, res *Result) {
	tenant, err := m.repos.Tenant.GetByID(tenantID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("load tenant %d for cascade: %w", tenantID, err))
		return
	}
	if tenant.IsTerminal() {
		return
	}
	if _, err := m.repos.Tenant.UpdateStatus(tenantID, tenant.Status, models.TenantStatusCancelled); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("cascade tenant %d to cancelled: %w", tenantID, err))
	}
}

func (m *Manager) appendHistory(sub models.Subscription, action, from, to, reason string) {
	entry := &models.SubscriptionHistory{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		Actor:          models.HistoryActorScheduler,
		Reason:         reason,
	}
	if err := m.repos.History.Append(entry); err != nil {
		log.Errorf("[Lifecycle Scheduler] Failed to append history for subscription %d: %v", sub.ID, err)
	}
}
