package speech

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPracticing Status = "practicing"
	StatusDelivered  Status = "delivered"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is one of the four labels. Any label may follow any
// other; there is no transition table.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPracticing, StatusDelivered, StatusArchived:
		return true
	default:
		return false
	}
}

const (
	MinSkills = 1
	MaxSkills = 5
)

type Speech struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Title           string        `gorm:"not null;column:title" json:"title"`
	Description     string        `gorm:"column:description" json:"description"`
	VideoURL        string        `gorm:"column:video_url" json:"video_url"`
	VideoBucketKey  string        `gorm:"column:video_bucket_key" json:"-"`
	DurationSeconds int           `gorm:"not null;default:0;column:duration_seconds" json:"duration_seconds"`
	Status          Status        `gorm:"not null;default:draft;column:status" json:"status"`
	IsPublic        bool          `gorm:"not null;default:false;column:is_public" json:"is_public"`
	ShareToken      *string       `gorm:"uniqueIndex;column:share_token" json:"share_token,omitempty"`
	UploadDate      *time.Time    `gorm:"column:upload_date" json:"upload_date,omitempty"`
	DeliveredDate   *time.Time    `gorm:"column:delivered_date" json:"delivered_date,omitempty"`
	Skills          []SpeechSkill `gorm:"foreignKey:SpeechID;references:ID" json:"skills,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Speech) TableName() string { return "speeches" }

func (s *Speech) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusDraft
	}
	return nil
}

// SkillIDs returns the ids of the attached skills in attachment order.
func (s *Speech) SkillIDs() []uuid.UUID {
	if s == nil {
		return nil
	}
	out := make([]uuid.UUID, 0, len(s.Skills))
	for _, ss := range s.Skills {
		out = append(out, ss.SkillID)
	}
	return out
}
