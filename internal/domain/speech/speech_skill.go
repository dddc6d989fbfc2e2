package speech

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/domain/skills"
)

// SpeechSkill is a join row. It has no lifecycle of its own and is replaced
// wholesale whenever the speech's skill set changes.
type SpeechSkill struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SpeechID  uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_speech_skill_speech_skill,priority:1" json:"speech_id"`
	SkillID   uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_speech_skill_speech_skill,priority:2;index" json:"skill_id"`
	Skill     *skills.Skill `gorm:"foreignKey:SkillID;references:ID" json:"skill,omitempty"`
	CreatedAt time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (SpeechSkill) TableName() string { return "speech_skills" }

func (ss *SpeechSkill) BeforeCreate(tx *gorm.DB) error {
	if ss.ID == uuid.Nil {
		ss.ID = uuid.New()
	}
	return nil
}
