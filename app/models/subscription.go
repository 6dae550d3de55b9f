package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

// Subscription is one tenant's billing relationship to a plan. At most one
// subscription is current per tenant (the latest by ID); terminal rows are
// never revived, a re-subscribe creates a new row so history is preserved.
//
// GracePeriodEnd is set only while status is past_due. CancelAtPeriodEnd may
// only be true while status is active.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	TenantID           uint       `gorm:"not null;index" json:"tenant_id"`
	PlanID             uint       `gorm:"not null" json:"plan_id"`
	Status             string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CurrentPeriodStart time.Time  `gorm:"type:timestamp;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `gorm:"type:timestamp;not null" json:"current_period_end"`
	NextBillingDate    time.Time  `gorm:"type:timestamp;not null;index" json:"next_billing_date"`
	GracePeriodEnd     *time.Time `gorm:"type:timestamp;default:null" json:"grace_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Tenant Tenant           `gorm:"foreignKey:TenantID" json:"-"`
	Plan   SubscriptionPlan `gorm:"foreignKey:PlanID" json:"-"`
}

// IsTerminal reports whether the subscription reached a state it never leaves.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired
}

// InGracePeriod reports whether the subscription is past due but still inside
// its grace window at the given time.
func (s *Subscription) InGracePeriod(now time.Time) bool {
	return s.Status == SubscriptionStatusPastDue && s.GracePeriodEnd != nil && now.Before(*s.GracePeriodEnd)
}
