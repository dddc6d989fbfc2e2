package skills

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserSkill is a skill a user is practicing. A row that carries evaluation
// history, or whose skill is attached to one of the user's speeches, is
// protected and cannot be removed.
type UserSkill struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_skill_user_skill,priority:1" json:"user_id"`
	SkillID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_skill_user_skill,priority:2;index" json:"skill_id"`
	Skill           *Skill    `gorm:"foreignKey:SkillID;references:ID" json:"skill,omitempty"`
	CurrentLevel    int       `gorm:"not null;default:1;column:current_level" json:"current_level"`
	TargetLevel     int       `gorm:"not null;default:5;column:target_level" json:"target_level"`
	HasEvaluations  bool      `gorm:"not null;default:false;column:has_evaluations" json:"has_evaluations"`
	EvaluationCount int       `gorm:"not null;default:0;column:evaluation_count" json:"evaluation_count"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (UserSkill) TableName() string { return "user_skills" }

func (us *UserSkill) BeforeCreate(tx *gorm.DB) error {
	if us.ID == uuid.Nil {
		us.ID = uuid.New()
	}
	return nil
}

// EvaluationProtected reports whether the row's own counters forbid removal.
func (us *UserSkill) EvaluationProtected() bool {
	return us != nil && (us.HasEvaluations || us.EvaluationCount > 0)
}
