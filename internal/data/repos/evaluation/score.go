package evaluation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// SpeechScore is one score value tagged with the speech it belongs to.
type SpeechScore struct {
	SpeechID     uuid.UUID
	EvaluationID uuid.UUID
	SkillID      uuid.UUID
	Score        int
}

type ScoreRepo interface {
	Create(dbc dbctx.Context, scores []*types.EvaluationSkillScore) ([]*types.EvaluationSkillScore, error)
	ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]SpeechScore, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]SpeechScore, error)
}

type scoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScoreRepo(db *gorm.DB, baseLog *logger.Logger) ScoreRepo {
	return &scoreRepo{db: db, log: baseLog.With("repo", "ScoreRepo")}
}

func (r *scoreRepo) Create(dbc dbctx.Context, scores []*types.EvaluationSkillScore) ([]*types.EvaluationSkillScore, error) {
	if len(scores) == 0 {
		return []*types.EvaluationSkillScore{}, nil
	}
	if err := dbc.Conn(r.db).Create(&scores).Error; err != nil {
		return nil, err
	}
	return scores, nil
}

func (r *scoreRepo) scoreQuery(dbc dbctx.Context) *gorm.DB {
	return dbc.Conn(r.db).
		Model(&types.EvaluationSkillScore{}).
		Select("evaluations.speech_id AS speech_id, evaluation_skill_scores.evaluation_id AS evaluation_id, evaluation_skill_scores.skill_id AS skill_id, evaluation_skill_scores.score AS score").
		Joins("JOIN evaluations ON evaluations.id = evaluation_skill_scores.evaluation_id")
}

func (r *scoreRepo) ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]SpeechScore, error) {
	var out []SpeechScore
	if len(speechIDs) == 0 {
		return out, nil
	}
	if err := r.scoreQuery(dbc).
		Where("evaluations.speech_id IN ?", speechIDs).
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns every score received on any speech the user owns.
func (r *scoreRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID) ([]SpeechScore, error) {
	var out []SpeechScore
	if err := r.scoreQuery(dbc).
		Joins("JOIN speeches ON speeches.id = evaluations.speech_id").
		Where("speeches.user_id = ?", userID).
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
