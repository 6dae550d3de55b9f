package repository

import (
	"time"

	"github.com/BizCoreHQ/bizcore/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CurrentByTenant returns the latest subscription row for a tenant. Older
// rows are historical and never mutated.
func (r *subscriptionRepository) CurrentByTenant(tenantID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("tenant_id = ?", tenantID).Order("id DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *subscriptionRepository) OverdueActive(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("status = ? AND next_billing_date < ? AND grace_period_end IS NULL", models.SubscriptionStatusActive, now).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) GraceExpired(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("status = ? AND grace_period_end IS NOT NULL AND grace_period_end < ?", models.SubscriptionStatusPastDue, now).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) PeriodEndCancellations(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("status = ? AND cancel_at_period_end = ? AND current_period_end < ?", models.SubscriptionStatusActive, true, now).
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) BillingWithin(now time.Time, window time.Duration) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("status = ? AND next_billing_date BETWEEN ? AND ?", models.SubscriptionStatusActive, now, now.Add(window)).
		Find(&subs).Error
	return subs, err
}

// MarkPastDue is a set-based conditional update: the WHERE clause repeats the
// selection predicate so a second scheduler run, or an overlapping one, finds
// zero rows to change.
func (r *subscriptionRepository) MarkPastDue(id uint, graceEnd time.Time) (bool, error) {
	res := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND grace_period_end IS NULL", id, models.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":           models.SubscriptionStatusPastDue,
			"grace_period_end": graceEnd,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *subscriptionRepository) MarkCancelled(id uint, fromStatus string) (bool, error) {
	res := r.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(map[string]any{
			"status":               models.SubscriptionStatusCancelled,
			"grace_period_end":     gorm.Expr("NULL"),
			"cancel_at_period_end": false,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
