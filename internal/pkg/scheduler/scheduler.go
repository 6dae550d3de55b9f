package scheduler

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/BizCoreHQ/bizcore/app/repository"
	"github.com/BizCoreHQ/bizcore/internal/pkg/metrics/counter"
)

const (
	DefaultInterval  = 24 * time.Hour
	DefaultGraceDays = 7

	trialReminderWindow   = 2 * 24 * time.Hour
	billingReminderWindow = 3 * 24 * time.Hour
)

// Notifier delivers lifecycle reminders to tenant contacts. Delivery
// failures are logged and never affect the reconciliation passes.
type Notifier interface {
	TrialExpiring(email, tenantName string, daysLeft int)
	BillingUpcoming(email, tenantName string, daysLeft int)
}

// Manager runs the subscription lifecycle reconciliation: once immediately
// at start, then on a fixed interval. Every pass is a set of guarded
// conditional updates, so an overlapping or repeated run is a no-op, not a
// correctness hazard.
type Manager struct {
	repos     *repository.Repositories
	interval  time.Duration
	graceDays int
	notifier  Notifier

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewManager(repos *repository.Repositories, interval time.Duration, graceDays int) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &Manager{
		repos:     repos,
		interval:  interval,
		graceDays: graceDays,
		stopCh:    make(chan struct{}),
	}
}

// SetNotifier installs the reminder delivery channel. Must be called before
// Start; without one, reminders are only logged.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// Start launches the background reconciliation loop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Lifecycle Scheduler] Starting subscription lifecycle scheduler")

	m.ticker = time.NewTicker(m.interval)
	m.wg.Add(1)
	go m.worker()
}

// Stop halts the loop and waits for an in-flight run to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Lifecycle Scheduler] Stopping...")

	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Lifecycle Scheduler] Stopped")
}

func (m *Manager) worker() {
	defer m.wg.Done()

	// First run happens immediately, not one interval in.
	m.run()

	for {
		select {
		case <-m.stopCh:
			log.Info("[Lifecycle Scheduler] Worker stopping")
			return
		case <-m.ticker.C:
			m.run()
		}
	}
}

func (m *Manager) run() {
	result := m.RunOnce(time.Now())
	log.Infof("[Lifecycle Scheduler] Run complete: %d trials expired, %d past due, %d grace cancellations, %d scheduled cancellations, %d errors",
		result.TrialsExpired, result.MarkedPastDue, result.GraceCancelled, result.PeriodEndCancelled, len(result.Errors))

	reminders := m.Reminders(time.Now())
	for _, r := range reminders {
		log.Infof("[Lifecycle Scheduler] Reminder: %s", r)
	}

	// Usage counters accumulate in Redis between runs; persist them here so a
	// registry query never has to touch the cache.
	if err := counter.FlushAll(); err != nil {
		log.Errorf("[Lifecycle Scheduler] Failed to flush usage counters: %v", err)
	}
}
