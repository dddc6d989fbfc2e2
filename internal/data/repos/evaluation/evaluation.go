package evaluation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type EvaluationRepo interface {
	Create(dbc dbctx.Context, evals []*types.Evaluation) ([]*types.Evaluation, error)
	ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]*types.Evaluation, error)
	CountBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) (map[uuid.UUID]int, error)
	CountForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	DeleteBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) error
}

type evaluationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvaluationRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationRepo {
	return &evaluationRepo{db: db, log: baseLog.With("repo", "EvaluationRepo")}
}

// Create inserts evaluation rows only. Scores go through ScoreRepo.
func (r *evaluationRepo) Create(dbc dbctx.Context, evals []*types.Evaluation) ([]*types.Evaluation, error) {
	if len(evals) == 0 {
		return []*types.Evaluation{}, nil
	}
	if err := dbc.Conn(r.db).Omit("Scores").Create(&evals).Error; err != nil {
		return nil, err
	}
	return evals, nil
}

// ListBySpeechIDs returns evaluations newest first with their scores.
func (r *evaluationRepo) ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]*types.Evaluation, error) {
	var out []*types.Evaluation
	if len(speechIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Preload("Scores").
		Where("speech_id IN ?", speechIDs).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *evaluationRepo) CountBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(speechIDs))
	if len(speechIDs) == 0 {
		return out, nil
	}
	type row struct {
		SpeechID uuid.UUID
		N        int
	}
	var rows []row
	if err := dbc.Conn(r.db).
		Model(&types.Evaluation{}).
		Select("speech_id, COUNT(*) AS n").
		Where("speech_id IN ?", speechIDs).
		Group("speech_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, rr := range rows {
		out[rr.SpeechID] = rr.N
	}
	return out, nil
}

// CountForUser counts evaluations received across all of the user's speeches.
func (r *evaluationRepo) CountForUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.Evaluation{}).
		Joins("JOIN speeches ON speeches.id = evaluations.speech_id").
		Where("speeches.user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// DeleteBySpeechIDs removes evaluations and their scores.
func (r *evaluationRepo) DeleteBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) error {
	if len(speechIDs) == 0 {
		return nil
	}
	conn := dbc.Conn(r.db)
	sub := conn.Session(&gorm.Session{NewDB: true}).
		Model(&types.Evaluation{}).
		Select("id").
		Where("speech_id IN ?", speechIDs)
	if err := conn.
		Where("evaluation_id IN (?)", sub).
		Delete(&types.EvaluationSkillScore{}).Error; err != nil {
		return err
	}
	return dbc.Conn(r.db).
		Where("speech_id IN ?", speechIDs).
		Delete(&types.Evaluation{}).Error
}
