package evaluation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Type string

const (
	TypeSelf      Type = "self"
	TypePeer      Type = "peer"
	TypeAnonymous Type = "anonymous"
	TypeWritten   Type = "written"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Evaluation is written once by an unauthenticated evaluator and never
// updated afterwards.
type Evaluation struct {
	ID                  uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	SpeechID            uuid.UUID              `gorm:"type:uuid;not null;index" json:"speech_id"`
	EvaluatorUserID     *uuid.UUID             `gorm:"type:uuid;column:evaluator_user_id" json:"evaluator_user_id,omitempty"`
	EvaluatorName       string                 `gorm:"not null;column:evaluator_name" json:"evaluator_name"`
	EvaluatorEmail      string                 `gorm:"column:evaluator_email" json:"evaluator_email,omitempty"`
	EvaluationType      Type                   `gorm:"not null;column:evaluation_type" json:"evaluation_type"`
	WhatWentWell        string                 `gorm:"column:what_went_well" json:"what_went_well"`
	WhatCouldBeImproved string                 `gorm:"column:what_could_be_improved" json:"what_could_be_improved"`
	IsAnonymous         bool                   `gorm:"not null;default:false;column:is_anonymous" json:"is_anonymous"`
	Metadata            datatypes.JSON         `gorm:"column:metadata" json:"metadata,omitempty"`
	Scores              []EvaluationSkillScore `gorm:"foreignKey:EvaluationID;references:ID" json:"scores,omitempty"`
	CreatedAt           time.Time              `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (Evaluation) TableName() string { return "evaluations" }

func (e *Evaluation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TypeForName classifies a submission purely from the typed name.
func TypeForName(name string) Type {
	if strings.EqualFold(strings.TrimSpace(name), "anonymous") {
		return TypeAnonymous
	}
	return TypePeer
}
