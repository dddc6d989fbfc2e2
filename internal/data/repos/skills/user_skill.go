package skills

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type UserSkillRepo interface {
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserSkill, error)
	GetByUserAndSkill(dbc dbctx.Context, userID, skillID uuid.UUID) (*types.UserSkill, error)
	EnsureForUser(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) error
	DeleteUnprotected(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) (int64, error)
	IncrementEvaluationCounts(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) error
}

type userSkillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserSkillRepo(db *gorm.DB, baseLog *logger.Logger) UserSkillRepo {
	return &userSkillRepo{db: db, log: baseLog.With("repo", "UserSkillRepo")}
}

func (r *userSkillRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserSkill, error) {
	var out []*types.UserSkill
	if err := dbc.Conn(r.db).
		Preload("Skill").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetByUserAndSkill returns nil, nil when the user does not track the skill.
func (r *userSkillRepo) GetByUserAndSkill(dbc dbctx.Context, userID, skillID uuid.UUID) (*types.UserSkill, error) {
	var out []*types.UserSkill
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// EnsureForUser inserts a fresh row for every skill the user is not already
// tracking. Existing rows are left untouched.
func (r *userSkillRepo) EnsureForUser(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) error {
	if len(skillIDs) == 0 {
		return nil
	}
	rows := make([]*types.UserSkill, 0, len(skillIDs))
	for _, id := range skillIDs {
		rows = append(rows, &types.UserSkill{
			UserID:       userID,
			SkillID:      id,
			CurrentLevel: 1,
			TargetLevel:  5,
		})
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// DeleteUnprotected removes the given rows except those that carry
// evaluation history. The filter lives in the DELETE itself so a concurrent
// evaluation cannot slip between a check and the delete.
func (r *userSkillRepo) DeleteUnprotected(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) (int64, error) {
	if len(skillIDs) == 0 {
		return 0, nil
	}
	res := dbc.Conn(r.db).
		Where("user_id = ? AND skill_id IN ? AND has_evaluations = ? AND evaluation_count = 0", userID, skillIDs, false).
		Delete(&types.UserSkill{})
	return res.RowsAffected, res.Error
}

func (r *userSkillRepo) IncrementEvaluationCounts(dbc dbctx.Context, userID uuid.UUID, skillIDs []uuid.UUID) error {
	if len(skillIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Model(&types.UserSkill{}).
		Where("user_id = ? AND skill_id IN ?", userID, skillIDs).
		Updates(map[string]interface{}{
			"evaluation_count": gorm.Expr("evaluation_count + ?", 1),
			"has_evaluations":  true,
		}).Error
}
