package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/session"
)

func newAuthService(t *testing.T, env *testEnv, verifier OIDCVerifier, cfg AuthConfig) AuthService {
	t.Helper()
	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "test-secret"
	}
	profiles := NewProfileService(env.log, env.rs.Profile, nil, nil, nil, ProfileConfig{})
	svc, err := NewAuthService(env.db, env.log, env.rs.Profile, env.rs.UserToken, env.rs.UserIdentity, verifier, profiles, cfg)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestSignInIssuesSessionAndCreatesProfile(t *testing.T) {
	env := newTestEnv(t)
	idp := newFakeIdP(t)
	auth := newAuthService(t, env, idp.verifier(), AuthConfig{AccessTTL: time.Minute})

	res, err := auth.SignInWithIDToken(env.ctx, "Google", idp.sign(t, idp.claims("g-1", "jo@example.com")), "")
	if err != nil {
		t.Fatalf("SignInWithIDToken: %v", err)
	}
	if res.Profile.State != session.Loaded || res.Profile.Value.Email != "jo@example.com" || res.Profile.Value.FullName != "Jo Speaker" {
		t.Fatalf("profile: %+v", res.Profile)
	}
	if res.Session.Phase != session.PhaseReady || res.Session.Provider != types.ProviderGoogle {
		t.Fatalf("session: %+v", res.Session)
	}
	if res.Tokens.TokenType != "Bearer" || res.Tokens.ExpiresIn != 60 {
		t.Fatalf("tokens: %+v", res.Tokens)
	}
	userID := res.Session.UserID

	ctx, err := auth.SetContextFromToken(env.ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID != userID || rd.Email != "jo@example.com" {
		t.Fatalf("request data: %+v", rd)
	}
	if st := auth.SessionState(ctx); st.Phase != session.PhaseReady || st.Profile == nil {
		t.Fatalf("SessionState: %+v", st)
	}

	// Same subject maps to the same user; a second provider with the same
	// verified email links to it as well.
	again, err := auth.SignInWithIDToken(env.ctx, types.ProviderGoogle, idp.sign(t, idp.claims("g-1", "jo@example.com")), "")
	if err != nil || again.Session.UserID != userID {
		t.Fatalf("second sign-in: err=%v user=%s want %s", err, again.Session.UserID, userID)
	}
	linked, err := auth.SignInWithIDToken(env.ctx, types.ProviderLinkedIn, idp.sign(t, idp.claims("li-9", "jo@example.com")), "")
	if err != nil || linked.Session.UserID != userID {
		t.Fatalf("linkedin sign-in: err=%v user=%s want %s", err, linked.Session.UserID, userID)
	}
}

func TestSignInRejections(t *testing.T) {
	env := newTestEnv(t)
	idp := newFakeIdP(t)
	auth := newAuthService(t, env, idp.verifier(), AuthConfig{})

	if _, err := auth.SignInWithIDToken(env.ctx, "github", "x", ""); !errors.Is(err, types.ErrInvalidArgument) {
		t.Fatalf("unsupported provider: expected ErrInvalidArgument, got %v", err)
	}
	bad := idp.claims("g-2", "x@example.com")
	bad["aud"] = "other"
	if _, err := auth.SignInWithIDToken(env.ctx, types.ProviderGoogle, idp.sign(t, bad), ""); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("bad audience: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := auth.SignInDemo(env.ctx); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("SignInDemo(disabled): expected ErrForbidden, got %v", err)
	}
	if _, err := auth.SetContextFromToken(env.ctx, "garbage"); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("SetContextFromToken(garbage): expected ErrUnauthenticated, got %v", err)
	}
	if _, err := NewAuthService(env.db, env.log, env.rs.Profile, env.rs.UserToken, env.rs.UserIdentity, nil, nil, AuthConfig{}); err == nil {
		t.Fatalf("NewAuthService: expected error without secret")
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	demoID := uuid.New()
	auth := newAuthService(t, env, nil, AuthConfig{
		DemoMode:   true,
		DemoUserID: demoID,
		DemoEmail:  "demo@speakwell.local",
		DemoName:   "Demo Speaker",
	})

	res, err := auth.SignInDemo(env.ctx)
	if err != nil {
		t.Fatalf("SignInDemo: %v", err)
	}
	if res.Session.UserID != demoID || res.Session.Provider != types.ProviderDemo {
		t.Fatalf("demo session: %+v", res.Session)
	}

	next, err := auth.Refresh(env.ctx, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == res.Tokens.RefreshToken {
		t.Fatalf("Refresh: refresh token not rotated")
	}
	if _, err := auth.Refresh(env.ctx, res.Tokens.RefreshToken); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("Refresh(reused): expected ErrUnauthenticated, got %v", err)
	}
	if _, err := auth.SetContextFromToken(env.ctx, res.Tokens.AccessToken); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("old access token should be revoked, got %v", err)
	}

	ctx, err := auth.SetContextFromToken(env.ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken(rotated): %v", err)
	}
	if err := auth.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := auth.SetContextFromToken(env.ctx, next.AccessToken); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("access token after logout: expected ErrUnauthenticated, got %v", err)
	}
	if err := auth.Logout(env.ctx); !errors.Is(err, types.ErrUnauthenticated) {
		t.Fatalf("Logout(no session): expected ErrUnauthenticated, got %v", err)
	}
}
