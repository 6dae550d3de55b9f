package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/BizCoreHQ/bizcore/app/models"
	"github.com/BizCoreHQ/bizcore/app/repository"
)

// In-memory registry fakes mirroring the guarded-update semantics of the
// GORM repositories.

type fakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[uint]*models.Tenant
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{tenants: make(map[uint]*models.Tenant)}
}

func (f *fakeTenantRepo) Create(t *models.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantRepo) GetByID(id uint) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTenantRepo) GetBySlug(slug string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tenants {
		if t.Slug == slug {
			copied := *t
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTenantRepo) Update(t *models.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[t.ID] = t
	return nil
}

func (f *fakeTenantRepo) UpdateStatus(id uint, fromStatus, toStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tenants[id]
	if !ok || t.Status != fromStatus {
		return false, nil
	}
	t.Status = toStatus
	return true, nil
}

func (f *fakeTenantRepo) MarkProvisioned(id uint, databaseName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tenants[id]; ok {
		t.DatabaseName = databaseName
		t.SetupComplete = true
		t.ProvisioningStatus = models.ProvisioningComplete
	}
	return nil
}

func (f *fakeTenantRepo) MarkProvisioningFailed(id uint, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tenants[id]; ok {
		t.ProvisioningStatus = models.ProvisioningFailed
		t.ProvisioningError = reason
	}
	return nil
}

func (f *fakeTenantRepo) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tenants, id)
	return nil
}

func (f *fakeTenantRepo) List(offset, limit int) ([]models.Tenant, error) {
	return nil, nil
}

func (f *fakeTenantRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.tenants)), nil
}

func (f *fakeTenantRepo) ExpiredTrials(now time.Time) ([]models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Tenant
	for _, t := range f.tenants {
		if t.Status == models.TenantStatusTrial && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTenantRepo) TrialsExpiringWithin(now time.Time, window time.Duration) ([]models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Tenant
	for _, t := range f.tenants {
		if t.Status == models.TenantStatusTrial && t.TrialEndsAt != nil &&
			t.TrialEndsAt.After(now) && t.TrialEndsAt.Before(now.Add(window)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[uint]*models.Subscription

	// failMarkPastDue makes MarkPastDue error for the given IDs.
	failMarkPastDue map[uint]error
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[uint]*models.Subscription), failMarkPastDue: make(map[uint]error)}
}

func (f *fakeSubRepo) Create(s *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s.ID] = s
	return nil
}

func (f *fakeSubRepo) GetByID(id uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSubRepo) CurrentByTenant(tenantID uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Subscription
	for _, s := range f.subs {
		if s.TenantID == tenantID && (latest == nil || s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeSubRepo) Update(s *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s.ID] = s
	return nil
}

func (f *fakeSubRepo) OverdueActive(now time.Time) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusActive && s.NextBillingDate.Before(now) && s.GracePeriodEnd == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) GraceExpired(now time.Time) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusPastDue && s.GracePeriodEnd != nil && s.GracePeriodEnd.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) PeriodEndCancellations(now time.Time) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusActive && s.CancelAtPeriodEnd && s.CurrentPeriodEnd.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) BillingWithin(now time.Time, window time.Duration) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusActive &&
			!s.NextBillingDate.Before(now) && !s.NextBillingDate.After(now.Add(window)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubRepo) MarkPastDue(id uint, graceEnd time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failMarkPastDue[id]; ok {
		return false, err
	}
	s, ok := f.subs[id]
	if !ok || s.Status != models.SubscriptionStatusActive || s.GracePeriodEnd != nil {
		return false, nil
	}
	s.Status = models.SubscriptionStatusPastDue
	end := graceEnd
	s.GracePeriodEnd = &end
	return true, nil
}

func (f *fakeSubRepo) MarkCancelled(id uint, fromStatus string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok || s.Status != fromStatus {
		return false, nil
	}
	s.Status = models.SubscriptionStatusCancelled
	s.GracePeriodEnd = nil
	s.CancelAtPeriodEnd = false
	return true, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []models.SubscriptionHistory
}

func (f *fakeHistoryRepo) Append(e *models.SubscriptionHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeHistoryRepo) ListBySubscription(subscriptionID uint) ([]models.SubscriptionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SubscriptionHistory
	for _, e := range f.entries {
		if e.SubscriptionID == subscriptionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) ListByTenant(tenantID uint) ([]models.SubscriptionHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SubscriptionHistory
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestManager() (*Manager, *fakeTenantRepo, *fakeSubRepo, *fakeHistoryRepo) {
	tenants := newFakeTenantRepo()
	subs := newFakeSubRepo()
	history := &fakeHistoryRepo{}
	repos := &repository.Repositories{
		Tenant:       tenants,
		Subscription: subs,
		History:      history,
	}
	return NewManager(repos, time.Hour, 7), tenants, subs, history
}

func TestRunOnce_ExpiresTrials(t *testing.T) {
	mgr, tenants, _, history := newTestManager()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)
	tenants.Create(&models.Tenant{ID: 1, Slug: "expired", Status: models.TenantStatusTrial, TrialEndsAt: &past})
	tenants.Create(&models.Tenant{ID: 2, Slug: "running", Status: models.TenantStatusTrial, TrialEndsAt: &future})

	res := mgr.RunOnce(now)

	assert.Equal(t, 1, res.TrialsExpired)
	assert.Empty(t, res.Errors)

	expired, _ := tenants.GetByID(1)
	assert.Equal(t, models.TenantStatusExpired, expired.Status)
	running, _ := tenants.GetByID(2)
	assert.Equal(t, models.TenantStatusTrial, running.Status)

	// Trials carry no subscription, so no history entry is written.
	assert.Empty(t, history.entries)
}

func TestRunOnce_MarksOverduePastDue(t *testing.T) {
	mgr, tenants, subs, history := newTestManager()
	now := time.Now()

	tenants.Create(&models.Tenant{ID: 1, Slug: "acme", Status: models.TenantStatusActive})
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 1,
		Status:          models.SubscriptionStatusActive,
		NextBillingDate: now.Add(-time.Hour),
	})

	res := mgr.RunOnce(now)

	assert.Equal(t, 1, res.MarkedPastDue)
	assert.Empty(t, res.Errors)

	sub, _ := subs.GetByID(10)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
	assert.NotNil(t, sub.GracePeriodEnd)
	assert.WithinDuration(t, now.Add(7*24*time.Hour), *sub.GracePeriodEnd, time.Second)

	assert.Len(t, history.entries, 1)
	assert.Equal(t, models.HistoryActionPaymentOverdue, history.entries[0].Action)
	assert.Equal(t, models.HistoryActorScheduler, history.entries[0].Actor)
}

func TestRunOnce_GraceExpiryCancelsAndCascades(t *testing.T) {
	mgr, tenants, subs, history := newTestManager()
	now := time.Now()

	tenants.Create(&models.Tenant{ID: 1, Slug: "acme", Status: models.TenantStatusActive})
	graceEnd := now.Add(-time.Hour)
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 1,
		Status:          models.SubscriptionStatusPastDue,
		NextBillingDate: now.Add(-8 * 24 * time.Hour),
		GracePeriodEnd:  &graceEnd,
	})

	res := mgr.RunOnce(now)

	assert.Equal(t, 1, res.GraceCancelled)
	assert.Empty(t, res.Errors)

	sub, _ := subs.GetByID(10)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.Nil(t, sub.GracePeriodEnd)

	tenant, _ := tenants.GetByID(1)
	assert.Equal(t, models.TenantStatusCancelled, tenant.Status)

	assert.Len(t, history.entries, 1)
	assert.Equal(t, models.HistoryActionCancelled, history.entries[0].Action)
	assert.Equal(t, "grace period ended", history.entries[0].Reason)
}

func TestRunOnce_GraceStillOpenIsUntouched(t *testing.T) {
	mgr, tenants, subs, _ := newTestManager()
	now := time.Now()

	tenants.Create(&models.Tenant{ID: 1, Slug: "acme", Status: models.TenantStatusActive})
	graceEnd := now.Add(48 * time.Hour)
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 1,
		Status:          models.SubscriptionStatusPastDue,
		NextBillingDate: now.Add(-24 * time.Hour),
		GracePeriodEnd:  &graceEnd,
	})

	res := mgr.RunOnce(now)

	assert.Zero(t, res.GraceCancelled)
	sub, _ := subs.GetByID(10)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestRunOnce_AppliesScheduledCancellation(t *testing.T) {
	mgr, tenants, subs, history := newTestManager()
	now := time.Now()

	tenants.Create(&models.Tenant{ID: 1, Slug: "acme", Status: models.TenantStatusActive})
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 1,
		Status:            models.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  now.Add(-time.Hour),
		NextBillingDate:   now.Add(30 * 24 * time.Hour),
	})

	res := mgr.RunOnce(now)

	assert.Equal(t, 1, res.PeriodEndCancelled)

	sub, _ := subs.GetByID(10)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)

	tenant, _ := tenants.GetByID(1)
	assert.Equal(t, models.TenantStatusCancelled, tenant.Status)

	assert.Len(t, history.entries, 1)
	assert.Equal(t, "period ended", history.entries[0].Reason)
}

// A second run over already-processed rows must be a no-op: the guarded
// updates find nothing in the expected source state.
func TestRunOnce_Idempotent(t *testing.T) {
	mgr, tenants, subs, history := newTestManager()
	now := time.Now()

	past := now.Add(-time.Hour)
	tenants.Create(&models.Tenant{ID: 1, Slug: "trial", Status: models.TenantStatusTrial, TrialEndsAt: &past})
	tenants.Create(&models.Tenant{ID: 2, Slug: "acme", Status: models.TenantStatusActive})
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 2,
		Status:          models.SubscriptionStatusActive,
		NextBillingDate: now.Add(-time.Hour),
	})

	first := mgr.RunOnce(now)
	assert.Equal(t, 1, first.TrialsExpired)
	assert.Equal(t, 1, first.MarkedPastDue)

	second := mgr.RunOnce(now)
	assert.Zero(t, second.TrialsExpired)
	assert.Zero(t, second.MarkedPastDue)
	assert.Zero(t, second.GraceCancelled)
	assert.Zero(t, second.PeriodEndCancelled)

	assert.Len(t, history.entries, 1)
}

// One failing row must not stop the batch for the others.
func TestRunOnce_ErrorIsolation(t *testing.T) {
	mgr, tenants, subs, _ := newTestManager()
	now := time.Now()

	tenants.Create(&models.Tenant{ID: 1, Slug: "broken", Status: models.TenantStatusActive})
	tenants.Create(&models.Tenant{ID: 2, Slug: "fine", Status: models.TenantStatusActive})
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 1,
		Status:          models.SubscriptionStatusActive,
		NextBillingDate: now.Add(-time.Hour),
	})
	subs.Create(&models.Subscription{
		ID: 11, TenantID: 2,
		Status:          models.SubscriptionStatusActive,
		NextBillingDate: now.Add(-time.Hour),
	})
	subs.failMarkPastDue[10] = errors.New("deadlock")

	res := mgr.RunOnce(now)

	assert.Equal(t, 1, res.MarkedPastDue)
	assert.Len(t, res.Errors, 1)

	fine, _ := subs.GetByID(11)
	assert.Equal(t, models.SubscriptionStatusPastDue, fine.Status)
}

type recordingNotifier struct {
	mu      sync.Mutex
	trials  []string
	billing []string
}

func (n *recordingNotifier) TrialExpiring(email, tenantName string, daysLeft int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trials = append(n.trials, email)
}

func (n *recordingNotifier) BillingUpcoming(email, tenantName string, daysLeft int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.billing = append(n.billing, email)
}

func TestReminders(t *testing.T) {
	mgr, tenants, subs, _ := newTestManager()
	notifier := &recordingNotifier{}
	mgr.SetNotifier(notifier)
	now := time.Now()

	soon := now.Add(24 * time.Hour)
	far := now.Add(10 * 24 * time.Hour)
	tenants.Create(&models.Tenant{ID: 1, Slug: "soon", Name: "Soon Inc", ContactEmail: "soon@test", Status: models.TenantStatusTrial, TrialEndsAt: &soon})
	tenants.Create(&models.Tenant{ID: 2, Slug: "far", Name: "Far Inc", ContactEmail: "far@test", Status: models.TenantStatusTrial, TrialEndsAt: &far})
	tenants.Create(&models.Tenant{ID: 3, Slug: "paying", Name: "Paying Inc", ContactEmail: "pay@test", Status: models.TenantStatusActive})
	subs.Create(&models.Subscription{
		ID: 10, TenantID: 3,
		Status:          models.SubscriptionStatusActive,
		NextBillingDate: now.Add(48 * time.Hour),
	})

	reminders := mgr.Reminders(now)

	assert.Len(t, reminders, 2)
	assert.Equal(t, []string{"soon@test"}, notifier.trials)
	assert.Equal(t, []string{"pay@test"}, notifier.billing)
}

// Reminders never mutate registry state.
func TestReminders_ReadOnly(t *testing.T) {
	mgr, tenants, _, history := newTestManager()
	now := time.Now()

	soon := now.Add(24 * time.Hour)
	tenants.Create(&models.Tenant{ID: 1, Slug: "soon", Status: models.TenantStatusTrial, TrialEndsAt: &soon})

	mgr.Reminders(now)

	tenant, _ := tenants.GetByID(1)
	assert.Equal(t, models.TenantStatusTrial, tenant.Status)
	assert.Empty(t, history.entries)
}

func TestDaysUntil(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 0, daysUntil(now, now.Add(-time.Hour)))
	assert.Equal(t, 1, daysUntil(now, now.Add(12*time.Hour)))
	assert.Equal(t, 1, daysUntil(now, now.Add(24*time.Hour)))
	assert.Equal(t, 2, daysUntil(now, now.Add(25*time.Hour)))
}

func TestManagerStartStop(t *testing.T) {
	mgr, _, _, _ := newTestManager()

	mgr.Start()
	// Second start is a no-op, not a second worker.
	mgr.Start()

	mgr.Stop()
	// Stop is idempotent too.
	mgr.Stop()
}
