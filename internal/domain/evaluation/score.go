package evaluation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EvaluationSkillScore struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EvaluationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_eval_score_eval_skill,priority:1" json:"evaluation_id"`
	SkillID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_eval_score_eval_skill,priority:2;index" json:"skill_id"`
	Score        int       `gorm:"not null;column:score" json:"score"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (EvaluationSkillScore) TableName() string { return "evaluation_skill_scores" }

func (s *EvaluationSkillScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}
