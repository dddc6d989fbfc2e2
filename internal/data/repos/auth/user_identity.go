package auth

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type UserIdentityRepo interface {
	Create(dbc dbctx.Context, ids []*types.UserIdentity) ([]*types.UserIdentity, error)
	GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.UserIdentity, error)
	GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.UserIdentity, error)
}

type userIdentityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserIdentityRepo(db *gorm.DB, baseLog *logger.Logger) UserIdentityRepo {
	return &userIdentityRepo{
		db:  db,
		log: baseLog.With("repo", "UserIdentityRepo"),
	}
}

func (r *userIdentityRepo) Create(dbc dbctx.Context, ids []*types.UserIdentity) ([]*types.UserIdentity, error) {
	if len(ids) == 0 {
		return []*types.UserIdentity{}, nil
	}
	if err := dbc.Conn(r.db).Create(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByProviderSub returns nil, nil when the identity has never signed in.
func (r *userIdentityRepo) GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.UserIdentity, error) {
	var out []*types.UserIdentity
	if err := dbc.Conn(r.db).
		Where("provider = ? AND provider_sub = ?", provider, sub).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *userIdentityRepo) GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.UserIdentity, error) {
	var out []*types.UserIdentity
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).Where("user_id IN ?", userIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
