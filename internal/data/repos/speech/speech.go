package speech

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type SpeechRepo interface {
	Create(dbc dbctx.Context, speeches []*types.Speech) ([]*types.Speech, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Speech, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Speech, error)
	GetPublicByShareToken(dbc dbctx.Context, token string) (*types.Speech, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetShareToken(dbc dbctx.Context, id uuid.UUID, token string) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type speechRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpeechRepo(db *gorm.DB, baseLog *logger.Logger) SpeechRepo {
	return &speechRepo{db: db, log: baseLog.With("repo", "SpeechRepo")}
}

func (r *speechRepo) Create(dbc dbctx.Context, speeches []*types.Speech) ([]*types.Speech, error) {
	if len(speeches) == 0 {
		return []*types.Speech{}, nil
	}
	if err := dbc.Conn(r.db).Omit("Skills").Create(&speeches).Error; err != nil {
		return nil, err
	}
	return speeches, nil
}

func withSkills(db *gorm.DB) *gorm.DB {
	return db.Preload("Skills", func(q *gorm.DB) *gorm.DB {
		return q.Order("created_at ASC")
	}).Preload("Skills.Skill")
}

// GetByID returns nil, nil when the speech does not exist.
func (r *speechRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Speech, error) {
	var out []*types.Speech
	if err := withSkills(dbc.Conn(r.db)).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *speechRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Speech, error) {
	var out []*types.Speech
	if err := withSkills(dbc.Conn(r.db)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetPublicByShareToken resolves only speeches that are currently public.
// Returns nil, nil for unknown or revoked tokens.
func (r *speechRepo) GetPublicByShareToken(dbc dbctx.Context, token string) (*types.Speech, error) {
	if token == "" {
		return nil, nil
	}
	var out []*types.Speech
	if err := withSkills(dbc.Conn(r.db)).
		Where("share_token = ? AND is_public = ?", token, true).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *speechRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Model(&types.Speech{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetShareToken replaces any previous token and marks the speech public.
func (r *speechRepo) SetShareToken(dbc dbctx.Context, id uuid.UUID, token string) error {
	res := dbc.Conn(r.db).
		Model(&types.Speech{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"share_token": token,
			"is_public":   true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *speechRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("id IN ?", ids).Delete(&types.Speech{}).Error
}
