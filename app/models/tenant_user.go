package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
	RoleAdmin  = "admin"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// TenantUser is a registry-level account. It lives in the registry database,
// not in the tenant's own database, because the Authentication Gateway must
// resolve credentials before any tenant pool exists for the request.
type TenantUser struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	TenantID    uint           `gorm:"not null;index" json:"tenant_id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password    string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role        string         `gorm:"type:varchar(20);default:'member'" json:"role" validate:"oneof=owner member admin"`
	Status      string         `gorm:"type:varchar(20);default:'active'" json:"status" validate:"oneof=active inactive"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	LoginCount  int64          `gorm:"not null;default:0" json:"login_count"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Tenant Tenant `gorm:"foreignKey:TenantID" json:"-"`
}

func (u *TenantUser) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewTenantUser builds a user with the given role and a hashed password.
func NewTenantUser(tenantID uint, name, email, password, role string) (*TenantUser, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &TenantUser{
		TenantID: tenantID,
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     role,
		Status:   UserStatusActive,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPassword verifies the given password against the stored hash.
func (u *TenantUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// IsActive reports whether the user may authenticate.
func (u *TenantUser) IsActive() bool {
	return u.Status == UserStatusActive
}
