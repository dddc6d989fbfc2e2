package domain

import (
	"github.com/yungbote/speakwell-backend/internal/domain/auth"
	"github.com/yungbote/speakwell-backend/internal/domain/evaluation"
	"github.com/yungbote/speakwell-backend/internal/domain/skills"
	"github.com/yungbote/speakwell-backend/internal/domain/speech"
	"github.com/yungbote/speakwell-backend/internal/domain/user"
)

type Profile = user.Profile

type UserIdentity = auth.UserIdentity
type UserToken = auth.UserToken

type Skill = skills.Skill
type SkillDifficulty = skills.Difficulty
type UserSkill = skills.UserSkill

type Speech = speech.Speech
type SpeechStatus = speech.Status
type SpeechSkill = speech.SpeechSkill

type Evaluation = evaluation.Evaluation
type EvaluationType = evaluation.Type
type EvaluationSkillScore = evaluation.EvaluationSkillScore

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&user.Profile{},
		&auth.UserIdentity{},
		&auth.UserToken{},
		&skills.Skill{},
		&skills.UserSkill{},
		&speech.Speech{},
		&speech.SpeechSkill{},
		&evaluation.Evaluation{},
		&evaluation.EvaluationSkillScore{},
	}
}

const (
	ProviderGoogle   = auth.ProviderGoogle
	ProviderLinkedIn = auth.ProviderLinkedIn
	ProviderDemo     = auth.ProviderDemo
)
