package repository

import (
	"github.com/BizCoreHQ/bizcore/app/models"
	"gorm.io/gorm"
)

// tenantUserRepository implements the TenantUserRepository interface
type tenantUserRepository struct {
	db *gorm.DB
}

// NewTenantUserRepository creates a new tenant user repository instance
func NewTenantUserRepository(db *gorm.DB) TenantUserRepository {
	return &tenantUserRepository{db: db}
}

func (r *tenantUserRepository) Create(user *models.TenantUser) error {
	return r.db.Create(user).Error
}

func (r *tenantUserRepository) GetByID(id uint) (*models.TenantUser, error) {
	var user models.TenantUser
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *tenantUserRepository) GetByEmail(email string) (*models.TenantUser, error) {
	var user models.TenantUser
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithTenant loads a user joined to its owning tenant, the shape the
// Authentication Gateway resolves a decoded credential against.
func (r *tenantUserRepository) GetWithTenant(id uint) (*models.TenantUser, error) {
	var user models.TenantUser
	err := r.db.Preload("Tenant").First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *tenantUserRepository) Update(user *models.TenantUser) error {
	return r.db.Save(user).Error
}

func (r *tenantUserRepository) DeleteByTenant(tenantID uint) error {
	return r.db.Unscoped().Where("tenant_id = ?", tenantID).Delete(&models.TenantUser{}).Error
}

func (r *tenantUserRepository) CountByTenant(tenantID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.TenantUser{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}
