package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AccountLearner      = "learner"
	AccountEducator     = "educator"
	AccountProfessional = "professional"
	AccountOrganization = "organization"

	OnboardingPending   = "pending"
	OnboardingCompleted = "completed"
)

type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;not null;size:50;column:username" json:"username"`
	Email            string         `gorm:"uniqueIndex;not null;size:120;column:email" json:"email"`
	PasswordHash     string         `gorm:"not null;column:password_hash" json:"-"`
	Role             string         `gorm:"not null;default:user;column:role" json:"role"`
	AccountType      string         `gorm:"column:account_type" json:"account_type,omitempty"`
	OnboardingStatus string         `gorm:"not null;default:pending;column:onboarding_status" json:"onboarding_status"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile holds the onboarding answers for one user. Details keeps the
// account-type specific fields (school, subjects, org_name, ...).
type Profile struct {
	UserID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	AccountType        string         `gorm:"not null;column:account_type" json:"account_type"`
	Details            datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	SubscriptionStatus string         `gorm:"not null;default:none;column:subscription_status" json:"subscription_status"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "user_profile" }
