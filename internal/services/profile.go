package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbstore "github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/domain/user"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/session"
)

const (
	DefaultProfileFetchTimeout  = 10 * time.Second
	DefaultProfileCreateTimeout = 15 * time.Second
	DefaultProfileRetryDelay    = time.Second

	maxBioLength = 500
)

var ErrProfileTimeout = errors.New("profile store timed out")

type ProfileConfig struct {
	FetchTimeout  time.Duration
	CreateTimeout time.Duration
	RetryDelay    time.Duration
}

func (c ProfileConfig) withDefaults() ProfileConfig {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultProfileFetchTimeout
	}
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = DefaultProfileCreateTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultProfileRetryDelay
	}
	return c
}

// ProfileIdentity is what the session knows about a user before the profile
// row has been read.
type ProfileIdentity struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

type UpdateProfileInput struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

type ProfileService interface {
	// Load reads the profile, creating it on first sign-in. It never returns an
	// error: callers switch on the result state.
	Load(ctx context.Context, id ProfileIdentity) session.Result[*types.Profile]
	Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	Update(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*types.Profile, error)
}

type profileService struct {
	log         *logger.Logger
	profileRepo repos.ProfileRepo
	avatar      AvatarService
	notifier    Notifier
	cfg         ProfileConfig
	metrics     ProfileLoadObserver
}

// ProfileLoadObserver records the outcome of each Load call.
type ProfileLoadObserver interface {
	ObserveProfileLoad(state string, d time.Duration)
}

func NewProfileService(log *logger.Logger, profileRepo repos.ProfileRepo, avatar AvatarService, notifier Notifier, metrics ProfileLoadObserver, cfg ProfileConfig) ProfileService {
	if notifier == nil {
		notifier = NewNotifier(nil)
	}
	return &profileService{
		log:         log.With("service", "ProfileService"),
		profileRepo: profileRepo,
		avatar:      avatar,
		notifier:    notifier,
		cfg:         cfg.withDefaults(),
		metrics:     metrics,
	}
}

func (ps *profileService) Load(ctx context.Context, id ProfileIdentity) session.Result[*types.Profile] {
	start := time.Now()
	res := ps.load(ctx, id)
	if ps.metrics != nil {
		ps.metrics.ObserveProfileLoad(string(res.State), time.Since(start))
	}
	return res
}

func (ps *profileService) load(ctx context.Context, id ProfileIdentity) session.Result[*types.Profile] {
	if id.UserID == uuid.Nil {
		return session.FailedResult[*types.Profile]("missing user id")
	}

	profile, created, err := ps.fetchOrCreate(ctx, id)
	if err != nil && retryableProfileError(err) {
		ps.log.Warn("Profile load retrying", "user_id", id.UserID, "error", err)
		select {
		case <-ctx.Done():
			return session.FailedResult[*types.Profile](ctx.Err().Error())
		case <-time.After(ps.cfg.RetryDelay):
		}
		profile, created, err = ps.fetchOrCreate(ctx, id)
	}

	switch {
	case err == nil:
		if created {
			ps.initAvatar(ctx, profile)
		}
		return session.LoadedResult(profile)
	case errors.Is(err, ErrProfileTimeout):
		ps.log.Warn("Profile store unreachable, serving placeholder", "user_id", id.UserID)
		return session.OfflineResult(user.Placeholder(id.UserID, id.Email, id.FullName), ErrProfileTimeout.Error())
	default:
		ps.log.Error("Profile load failed", "user_id", id.UserID, "error", err)
		return session.FailedResult[*types.Profile](err.Error())
	}
}

// retryableProfileError covers a store timeout and losing a concurrent create.
func retryableProfileError(err error) bool {
	return errors.Is(err, ErrProfileTimeout) || dbstore.IsUniqueViolation(err)
}

func (ps *profileService) fetchOrCreate(ctx context.Context, id ProfileIdentity) (*types.Profile, bool, error) {
	profile, err := ps.fetch(ctx, id.UserID)
	if err != nil {
		return nil, false, err
	}
	if profile != nil {
		return profile, false, nil
	}
	profile, err = ps.create(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

func (ps *profileService) fetch(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	fctx, cancel := context.WithTimeout(ctx, ps.cfg.FetchTimeout)
	defer cancel()
	profile, err := ps.profileRepo.GetByID(dbctx.Context{Ctx: fctx}, userID)
	if err != nil {
		return nil, classifyTimeout(fctx, ctx, err)
	}
	return profile, nil
}

func (ps *profileService) create(ctx context.Context, id ProfileIdentity) (*types.Profile, error) {
	cctx, cancel := context.WithTimeout(ctx, ps.cfg.CreateTimeout)
	defer cancel()

	profile := &types.Profile{
		ID:       id.UserID,
		Email:    strings.ToLower(strings.TrimSpace(id.Email)),
		FullName: strings.TrimSpace(id.FullName),
	}
	if ps.avatar != nil {
		profile.AvatarColor = ps.avatar.PickColor()
	}
	created, err := ps.profileRepo.Create(dbctx.Context{Ctx: cctx}, []*types.Profile{profile})
	if err != nil {
		return nil, classifyTimeout(cctx, ctx, err)
	}
	ps.log.Info("Profile created", "user_id", id.UserID)
	return created[0], nil
}

// classifyTimeout maps a failure caused by our own deadline to ErrProfileTimeout.
// Cancellation of the caller's context is passed through unchanged.
func classifyTimeout(opCtx, parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProfileTimeout, err)
	}
	return err
}

func (ps *profileService) initAvatar(ctx context.Context, profile *types.Profile) {
	if ps.avatar == nil || profile == nil || profile.AvatarURL != "" {
		return
	}
	if err := ps.avatar.CreateAndUploadInitialsAvatar(ctx, profile); err != nil {
		ps.log.Warn("Initial avatar generation failed (ignored)", "user_id", profile.ID, "error", err)
	}
}

func (ps *profileService) Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	profile, err := ps.profileRepo.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", userID, types.ErrNotFound)
	}
	return profile, nil
}

func (ps *profileService) Update(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*types.Profile, error) {
	updates := map[string]interface{}{}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, fmt.Errorf("full name cannot be empty: %w", types.ErrInvalidArgument)
		}
		updates["full_name"] = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > maxBioLength {
			return nil, fmt.Errorf("bio longer than %d characters: %w", maxBioLength, types.ErrInvalidArgument)
		}
		updates["bio"] = bio
	}
	if _, err := ps.Get(ctx, userID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := ps.profileRepo.UpdateFields(dbctx.Context{Ctx: ctx}, userID, updates); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	profile, err := ps.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	ps.notifier.ProfileUpdated(userID, profile)
	return profile, nil
}
