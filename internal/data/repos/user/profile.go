package user

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type ProfileRepo interface {
	Create(dbc dbctx.Context, profiles []*types.Profile) ([]*types.Profile, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Profile, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Profile, error)
	GetByEmails(dbc dbctx.Context, emails []string) ([]*types.Profile, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateAvatarFields(dbc dbctx.Context, id uuid.UUID, bucketKey, avatarURL string) error
	CompleteOnboarding(dbc dbctx.Context, id uuid.UUID, wantsAllSkills bool) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	repoLog := baseLog.With("repo", "ProfileRepo")
	return &profileRepo{db: db, log: repoLog}
}

func (pr *profileRepo) Create(dbc dbctx.Context, profiles []*types.Profile) ([]*types.Profile, error) {
	if len(profiles) == 0 {
		return []*types.Profile{}, nil
	}
	if err := dbc.Conn(pr.db).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (pr *profileRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Profile, error) {
	var results []*types.Profile
	if len(ids) == 0 {
		return results, nil
	}
	if err := dbc.Conn(pr.db).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetByID returns nil, nil when no profile exists yet.
func (pr *profileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Profile, error) {
	rows, err := pr.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (pr *profileRepo) GetByEmails(dbc dbctx.Context, emails []string) ([]*types.Profile, error) {
	var results []*types.Profile
	if len(emails) == 0 {
		return results, nil
	}
	if err := dbc.Conn(pr.db).
		Where("email IN ?", emails).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *profileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.Conn(pr.db).
		Model(&types.Profile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (pr *profileRepo) UpdateAvatarFields(dbc dbctx.Context, id uuid.UUID, bucketKey, avatarURL string) error {
	return pr.UpdateFields(dbc, id, map[string]interface{}{
		"avatar_bucket_key": bucketKey,
		"avatar_url":        avatarURL,
	})
}

func (pr *profileRepo) CompleteOnboarding(dbc dbctx.Context, id uuid.UUID, wantsAllSkills bool) error {
	return pr.UpdateFields(dbc, id, map[string]interface{}{
		"onboarding_completed": true,
		"wants_all_skills":     wantsAllSkills,
	})
}
