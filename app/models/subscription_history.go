package models

import "time"

const (
	HistoryActionSubscribed      = "subscribed"
	HistoryActionPaymentRecorded = "payment_recorded"
	HistoryActionPaymentOverdue  = "payment_overdue"
	HistoryActionCancelled       = "cancelled"
	HistoryActionSuspended       = "suspended"
	HistoryActionReactivated     = "reactivated"
)

const (
	HistoryActorScheduler = "scheduler"
	HistoryActorOperator  = "operator"
	HistoryActorTenant    = "tenant"
)

// SubscriptionHistory is an append-only audit record of a subscription state
// transition. Rows are never updated or deleted.
type SubscriptionHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null;index" json:"subscription_id"`
	TenantID       uint      `gorm:"not null;index" json:"tenant_id"`
	Action         string    `gorm:"type:varchar(50);not null" json:"action"`
	FromStatus     string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus       string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Actor          string    `gorm:"type:varchar(50);not null" json:"actor"`
	Reason         string    `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
