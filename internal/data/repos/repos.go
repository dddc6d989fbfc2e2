package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos/auth"
	"github.com/yungbote/speakwell-backend/internal/data/repos/evaluation"
	"github.com/yungbote/speakwell-backend/internal/data/repos/skills"
	"github.com/yungbote/speakwell-backend/internal/data/repos/speech"
	"github.com/yungbote/speakwell-backend/internal/data/repos/user"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type ProfileRepo = user.ProfileRepo

type UserTokenRepo = auth.UserTokenRepo
type UserIdentityRepo = auth.UserIdentityRepo

type SkillRepo = skills.SkillRepo
type UserSkillRepo = skills.UserSkillRepo

type SpeechRepo = speech.SpeechRepo
type SpeechSkillRepo = speech.SpeechSkillRepo

type EvaluationRepo = evaluation.EvaluationRepo
type ScoreRepo = evaluation.ScoreRepo
type SpeechScore = evaluation.SpeechScore

// Set bundles every repository the services need.
type Set struct {
	Profile      ProfileRepo
	UserToken    UserTokenRepo
	UserIdentity UserIdentityRepo
	Skill        SkillRepo
	UserSkill    UserSkillRepo
	Speech       SpeechRepo
	SpeechSkill  SpeechSkillRepo
	Evaluation   EvaluationRepo
	Score        ScoreRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Profile:      user.NewProfileRepo(db, log),
		UserToken:    auth.NewUserTokenRepo(db, log),
		UserIdentity: auth.NewUserIdentityRepo(db, log),
		Skill:        skills.NewSkillRepo(db, log),
		UserSkill:    skills.NewUserSkillRepo(db, log),
		Speech:       speech.NewSpeechRepo(db, log),
		SpeechSkill:  speech.NewSpeechSkillRepo(db, log),
		Evaluation:   evaluation.NewEvaluationRepo(db, log),
		Score:        evaluation.NewScoreRepo(db, log),
	}
}
