package scheduler

import (
	"github.com/gofiber/fiber/v2/log"

	"github.com/BizCoreHQ/bizcore/internal/pkg/mail"
)

// MailNotifier delivers lifecycle reminders over SMTP.
type MailNotifier struct{}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{}
}

func (n *MailNotifier) TrialExpiring(email, tenantName string, daysLeft int) {
	if err := mail.SendTrialExpiryReminder(email, tenantName, daysLeft); err != nil {
		log.Errorf("[Lifecycle Scheduler] Failed to send trial reminder to %s: %v", email, err)
	}
}

func (n *MailNotifier) BillingUpcoming(email, tenantName string, daysLeft int) {
	if err := mail.SendBillingReminder(email, tenantName, daysLeft); err != nil {
		log.Errorf("[Lifecycle Scheduler] Failed to send billing reminder to %s: %v", email, err)
	}
}
