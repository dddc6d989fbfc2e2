package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is created lazily on first sign-in. Its ID is the user id carried in
// session tokens.
type Profile struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email               string    `gorm:"column:email;index" json:"email"`
	FullName            string    `gorm:"column:full_name" json:"full_name"`
	Bio                 string    `gorm:"column:bio" json:"bio"`
	AvatarURL           string    `gorm:"column:avatar_url" json:"avatar_url"`
	AvatarBucketKey     string    `gorm:"column:avatar_bucket_key" json:"-"`
	AvatarColor         string    `gorm:"column:avatar_color" json:"avatar_color"`
	OnboardingCompleted bool      `gorm:"not null;default:false;column:onboarding_completed" json:"onboarding_completed"`
	WantsAllSkills      bool      `gorm:"not null;default:false;column:wants_all_skills" json:"wants_all_skills"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Placeholder builds the stand-in profile served while the store is unreachable.
// It is never persisted.
func Placeholder(id uuid.UUID, email, fullName string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:        id,
		Email:     email,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
