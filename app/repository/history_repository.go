package repository

import (
	"github.com/BizCoreHQ/bizcore/app/models"
	"gorm.io/gorm"
)

// historyRepository implements the HistoryRepository interface
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new subscription history repository instance
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Append writes one audit row. There is deliberately no update or delete.
func (r *historyRepository) Append(entry *models.SubscriptionHistory) error {
	return r.db.Create(entry).Error
}

func (r *historyRepository) ListBySubscription(subscriptionID uint) ([]models.SubscriptionHistory, error) {
	var entries []models.SubscriptionHistory
	err := r.db.Where("subscription_id = ?", subscriptionID).Order("id ASC").Find(&entries).Error
	return entries, err
}

func (r *historyRepository) ListByTenant(tenantID uint) ([]models.SubscriptionHistory, error) {
	var entries []models.SubscriptionHistory
	err := r.db.Where("tenant_id = ?", tenantID).Order("id ASC").Find(&entries).Error
	return entries, err
}
