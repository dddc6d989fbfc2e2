package skills

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// Skill is a catalog entry. Clients never write to the catalog.
type Skill struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"not null;uniqueIndex;column:name" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	Category    string     `gorm:"not null;index;column:category" json:"category"`
	Difficulty  Difficulty `gorm:"not null;column:difficulty" json:"difficulty"`
	Icon        string     `gorm:"column:icon" json:"icon"`
	IsActive    bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Skill) TableName() string { return "skills" }

func (s *Skill) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
