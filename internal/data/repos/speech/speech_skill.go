package speech

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type SpeechSkillRepo interface {
	Attach(dbc dbctx.Context, speechID uuid.UUID, skillIDs []uuid.UUID) ([]*types.SpeechSkill, error)
	ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]*types.SpeechSkill, error)
	DeleteBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) error
	CountUserSpeechesWithSkill(dbc dbctx.Context, userID, skillID uuid.UUID) (int64, error)
	SkillIDsInUseByUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type speechSkillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpeechSkillRepo(db *gorm.DB, baseLog *logger.Logger) SpeechSkillRepo {
	return &speechSkillRepo{db: db, log: baseLog.With("repo", "SpeechSkillRepo")}
}

func (r *speechSkillRepo) Attach(dbc dbctx.Context, speechID uuid.UUID, skillIDs []uuid.UUID) ([]*types.SpeechSkill, error) {
	rows := make([]*types.SpeechSkill, 0, len(skillIDs))
	if len(skillIDs) == 0 {
		return rows, nil
	}
	for _, id := range skillIDs {
		rows = append(rows, &types.SpeechSkill{SpeechID: speechID, SkillID: id})
	}
	if err := dbc.Conn(r.db).Omit("Skill").Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *speechSkillRepo) ListBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) ([]*types.SpeechSkill, error) {
	var out []*types.SpeechSkill
	if len(speechIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Preload("Skill").
		Where("speech_id IN ?", speechIDs).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *speechSkillRepo) DeleteBySpeechIDs(dbc dbctx.Context, speechIDs []uuid.UUID) error {
	if len(speechIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Where("speech_id IN ?", speechIDs).
		Delete(&types.SpeechSkill{}).Error
}

// CountUserSpeechesWithSkill counts the user's speeches that have skillID attached.
func (r *speechSkillRepo) CountUserSpeechesWithSkill(dbc dbctx.Context, userID, skillID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.SpeechSkill{}).
		Joins("JOIN speeches ON speeches.id = speech_skills.speech_id").
		Where("speeches.user_id = ? AND speech_skills.skill_id = ?", userID, skillID).
		Distinct("speech_skills.speech_id").
		Count(&n).Error
	return n, err
}

func (r *speechSkillRepo) SkillIDsInUseByUser(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbc.Conn(r.db).
		Model(&types.SpeechSkill{}).
		Joins("JOIN speeches ON speeches.id = speech_skills.speech_id").
		Where("speeches.user_id = ?", userID).
		Distinct().
		Pluck("speech_skills.skill_id", &ids).Error
	return ids, err
}
