package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/realtime"
	"github.com/yungbote/speakwell-backend/internal/session"
)

// scriptedProfileRepo answers GetByID and Create from queued responses.
type scriptedProfileRepo struct {
	repos.ProfileRepo

	mu      sync.Mutex
	gets    []func(ctx context.Context) (*types.Profile, error)
	creates []func(ctx context.Context, p *types.Profile) error
	getN    int
	createN int
}

func (r *scriptedProfileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Profile, error) {
	r.mu.Lock()
	fn := r.gets[min(r.getN, len(r.gets)-1)]
	r.getN++
	r.mu.Unlock()
	return fn(dbc.Ctx)
}

func (r *scriptedProfileRepo) Create(dbc dbctx.Context, rows []*types.Profile) ([]*types.Profile, error) {
	r.mu.Lock()
	fn := r.creates[min(r.createN, len(r.creates)-1)]
	r.createN++
	r.mu.Unlock()
	if err := fn(dbc.Ctx, rows[0]); err != nil {
		return nil, err
	}
	return rows, nil
}

func blockUntilDone(ctx context.Context) (*types.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type observedLoads struct {
	mu     sync.Mutex
	states []string
}

func (o *observedLoads) ObserveProfileLoad(state string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func fastProfileConfig() ProfileConfig {
	return ProfileConfig{FetchTimeout: 20 * time.Millisecond, CreateTimeout: 20 * time.Millisecond, RetryDelay: time.Millisecond}
}

func TestProfileLoadServesPlaceholderOnTimeout(t *testing.T) {
	log := testutil.Logger(t)
	repo := &scriptedProfileRepo{gets: []func(context.Context) (*types.Profile, error){blockUntilDone}}
	obs := &observedLoads{}
	svc := NewProfileService(log, repo, nil, nil, obs, fastProfileConfig())

	id := ProfileIdentity{UserID: uuid.New(), Email: "slow@example.com", FullName: "Slow Store"}
	res := svc.Load(testContext(), id)
	if res.State != session.Offline {
		t.Fatalf("Load: expected offline, got %s (%s)", res.State, res.Reason)
	}
	if res.Value == nil || res.Value.ID != id.UserID || res.Value.Email != id.Email {
		t.Fatalf("Load: placeholder %+v", res.Value)
	}
	if repo.getN != 2 {
		t.Fatalf("Load: expected exactly one retry, got %d fetches", repo.getN)
	}
	if len(obs.states) != 1 || obs.states[0] != string(session.Offline) {
		t.Fatalf("observer: %v", obs.states)
	}
}

func TestProfileLoadRetriesAfterConcurrentCreate(t *testing.T) {
	log := testutil.Logger(t)
	id := ProfileIdentity{UserID: uuid.New(), Email: "race@example.com"}
	winner := &types.Profile{ID: id.UserID, Email: id.Email, FullName: "Created Elsewhere"}
	repo := &scriptedProfileRepo{
		gets: []func(context.Context) (*types.Profile, error){
			func(context.Context) (*types.Profile, error) { return nil, nil },
			func(context.Context) (*types.Profile, error) { return winner, nil },
		},
		creates: []func(context.Context, *types.Profile) error{
			func(context.Context, *types.Profile) error { return gorm.ErrDuplicatedKey },
		},
	}
	svc := NewProfileService(log, repo, nil, nil, nil, fastProfileConfig())

	res := svc.Load(testContext(), id)
	if res.State != session.Loaded || res.Value != winner {
		t.Fatalf("Load: expected the concurrently created profile, got %s %+v", res.State, res.Value)
	}
	if repo.createN != 1 {
		t.Fatalf("Load: expected a single create attempt, got %d", repo.createN)
	}
}

func TestProfileLoadFailsWithoutRetryOnOtherErrors(t *testing.T) {
	log := testutil.Logger(t)
	repo := &scriptedProfileRepo{gets: []func(context.Context) (*types.Profile, error){
		func(context.Context) (*types.Profile, error) { return nil, errors.New("permission denied") },
	}}
	svc := NewProfileService(log, repo, nil, nil, nil, fastProfileConfig())

	res := svc.Load(testContext(), ProfileIdentity{UserID: uuid.New()})
	if res.State != session.Failed || !strings.Contains(res.Reason, "permission denied") {
		t.Fatalf("Load: expected failure, got %s (%s)", res.State, res.Reason)
	}
	if _, ok := res.Get(); ok {
		t.Fatalf("Get: failed result must not be usable")
	}
	if repo.getN != 1 {
		t.Fatalf("Load: expected no retry, got %d fetches", repo.getN)
	}
	if res := svc.Load(testContext(), ProfileIdentity{}); res.State != session.Failed {
		t.Fatalf("Load(nil id): expected failure")
	}
}

func TestProfileCreateAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.log, env.rs.Profile, nil, env.notifier(), nil, ProfileConfig{})

	id := ProfileIdentity{UserID: uuid.New(), Email: " New@Example.com ", FullName: "New Person"}
	first := svc.Load(env.ctx, id)
	if first.State != session.Loaded || first.Value.Email != "new@example.com" {
		t.Fatalf("Load(create): %s %+v", first.State, first.Value)
	}
	second := svc.Load(env.ctx, id)
	if second.State != session.Loaded || second.Value.ID != first.Value.ID {
		t.Fatalf("Load(existing): %s", second.State)
	}

	bio := "Toastmaster in training"
	name := "  Renamed  "
	got, err := svc.Update(env.ctx, id.UserID, UpdateProfileInput{FullName: &name, Bio: &bio})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.FullName != "Renamed" || got.Bio != bio {
		t.Fatalf("Update: %+v", got)
	}
	long := strings.Repeat("x", maxBioLength+1)
	if _, err := svc.Update(env.ctx, id.UserID, UpdateProfileInput{Bio: &long}); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("Update(long bio): expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.Update(env.ctx, uuid.New(), UpdateProfileInput{Bio: &bio}); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("Update(missing): expected ErrNotFound, got %v", err)
	}
	if n := len(env.emit.events(realtime.SSEEventProfileUpdated)); n != 1 {
		t.Fatalf("ProfileUpdated: expected 1 event, got %d", n)
	}
}
