package repository

import (
	"time"

	"github.com/BizCoreHQ/bizcore/app/models"
	"gorm.io/gorm"
)

// tenantRepository implements the TenantRepository interface
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository instance
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(tenant *models.Tenant) error {
	return r.db.Create(tenant).Error
}

func (r *tenantRepository) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.First(&tenant, id).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) GetBySlug(slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.Where("slug = ?", slug).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) Update(tenant *models.Tenant) error {
	return r.db.Save(tenant).Error
}

// UpdateStatus performs a guarded transition: the row only changes when it is
// still in fromStatus. Returns false when another writer got there first.
func (r *tenantRepository) UpdateStatus(id uint, fromStatus, toStatus string) (bool, error) {
	res := r.db.Model(&models.Tenant{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkProvisioned persists the database name and flips setup-complete. Driven
// by durable state so the routability check survives a crash mid-provision.
func (r *tenantRepository) MarkProvisioned(id uint, databaseName string) error {
	return r.db.Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"database_name":       databaseName,
			"setup_complete":      true,
			"provisioning_status": models.ProvisioningComplete,
			"provisioning_error":  "",
		}).Error
}

func (r *tenantRepository) MarkProvisioningFailed(id uint, reason string) error {
	return r.db.Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"provisioning_status": models.ProvisioningFailed,
			"provisioning_error":  reason,
		}).Error
}

// Delete soft-deletes the tenant row. The row stays behind the unique
// indexes on slug and database_name, so neither identifier can ever be
// claimed by a later signup. The physical database is dropped separately
// by the provisioner, best-effort.
func (r *tenantRepository) Delete(id uint) error {
	return r.db.Delete(&models.Tenant{}, id).Error
}

func (r *tenantRepository) List(offset, limit int) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tenants).Error
	return tenants, err
}

func (r *tenantRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Tenant{}).Count(&count).Error
	return count, err
}

func (r *tenantRepository) ExpiredTrials(now time.Time) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.
		Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?", models.TenantStatusTrial, now).
		Find(&tenants).Error
	return tenants, err
}

func (r *tenantRepository) TrialsExpiringWithin(now time.Time, window time.Duration) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.
		Where("status = ? AND trial_ends_at BETWEEN ? AND ?", models.TenantStatusTrial, now, now.Add(window)).
		Find(&tenants).Error
	return tenants, err
}
