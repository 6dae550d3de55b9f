package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// SubscriptionPlan is a static catalog entry. Plans are never deleted, only
// deactivated, so historical subscriptions keep a valid plan reference.
type SubscriptionPlan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code" validate:"required,min=2,max=50"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required"`
	PriceCents   int64     `gorm:"not null" json:"price_cents" validate:"gte=0"`
	BillingCycle string    `gorm:"type:varchar(20);not null;default:'monthly'" json:"billing_cycle" validate:"oneof=monthly yearly"`
	FeaturesJSON string    `gorm:"type:text" json:"features_json"`
	IsActive     bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *SubscriptionPlan) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// PeriodEnd returns the end of a billing period starting at the given time.
func (p *SubscriptionPlan) PeriodEnd(start time.Time) time.Time {
	if p.BillingCycle == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
