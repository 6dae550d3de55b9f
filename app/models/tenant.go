package models

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TenantStatusTrial     = "trial"
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusCancelled = "cancelled"
	TenantStatusExpired   = "expired"
)

const (
	ProvisioningPending  = "pending"
	ProvisioningComplete = "complete"
	ProvisioningFailed   = "failed"
)

// slugPattern is the allow-list for tenant slugs. The slug is interpolated
// into DDL identifiers during provisioning, so nothing outside this pattern
// may ever reach the registry.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,48}$`)

// Tenant is the registry record for one customer organization. Slug and
// DatabaseName are unique for the lifetime of the system and never reused,
// even after deletion.
type Tenant struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	PublicID           string     `gorm:"type:varchar(36);uniqueIndex" json:"public_id"`
	Name               string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Slug               string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug" validate:"required,min=2,max=50"`
	DatabaseName       string     `gorm:"type:varchar(64);uniqueIndex;default:null" json:"database_name"`
	ContactEmail       string     `gorm:"type:varchar(200)" json:"contact_email" validate:"omitempty,email"`
	Status             string     `gorm:"type:varchar(20);not null;default:'trial';index" json:"status" validate:"oneof=trial active suspended cancelled expired"`
	TrialEndsAt        *time.Time `gorm:"type:timestamp;default:null" json:"trial_ends_at,omitempty"`
	SetupComplete      bool       `gorm:"not null;default:false" json:"setup_complete"`
	ProvisioningStatus string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"provisioning_status" validate:"oneof=pending complete failed"`
	ProvisioningError  string     `gorm:"type:text" json:"-"`
	RequestCount       int64      `gorm:"not null;default:0" json:"request_count"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Tenant) Validate() error {
	v := validator.New()

	return v.Struct(t)
}

// ValidSlug reports whether the given slug matches the provisioning-safe
// identifier pattern.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// NewTenant builds a trial tenant for signup. The caller persists it and
// kicks off provisioning afterwards.
func NewTenant(name, slug, contactEmail string, trialDays int) (*Tenant, error) {
	if !ValidSlug(slug) {
		return nil, ErrInvalidSlug
	}

	trialEnd := time.Now().Add(time.Duration(trialDays) * 24 * time.Hour)
	t := &Tenant{
		PublicID:           uuid.NewString(),
		Name:               name,
		Slug:               slug,
		ContactEmail:       contactEmail,
		Status:             TenantStatusTrial,
		TrialEndsAt:        &trialEnd,
		ProvisioningStatus: ProvisioningPending,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// IsRoutable reports whether the Authentication Gateway may hand requests for
// this tenant a database pool. Suspended and terminal tenants are rejected
// with their own reason codes before this is consulted.
func (t *Tenant) IsRoutable() bool {
	return t.SetupComplete && t.ProvisioningStatus == ProvisioningComplete && t.DatabaseName != ""
}

// IsTerminal reports whether the tenant reached a state it never leaves.
func (t *Tenant) IsTerminal() bool {
	return t.Status == TenantStatusCancelled || t.Status == TenantStatusExpired
}
