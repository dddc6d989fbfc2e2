package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dbstore "github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/data/repos"
	types "github.com/yungbote/speakwell-backend/internal/domain"
	"github.com/yungbote/speakwell-backend/internal/platform/ctxutil"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/session"
)

type JWTClaims struct {
	SessionID string `json:"sid"`
	Provider  string `json:"prv,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecretKey string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	// DemoMode enables SignInDemo for the fixed demo profile.
	DemoMode   bool
	DemoUserID uuid.UUID
	DemoEmail  string
	DemoName   string
}

type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SignInResult struct {
	Tokens  Tokens                         `json:"tokens"`
	Session session.State                  `json:"session"`
	Profile session.Result[*types.Profile] `json:"profile"`
}

type AuthService interface {
	SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*SignInResult, error)
	SignInDemo(ctx context.Context) (*SignInResult, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	SessionState(ctx context.Context) session.State
	GetAccessTTL() time.Duration
}

type authService struct {
	db               *gorm.DB
	log              *logger.Logger
	profileRepo      repos.ProfileRepo
	userTokenRepo    repos.UserTokenRepo
	userIdentityRepo repos.UserIdentityRepo
	verifier         OIDCVerifier
	profiles         ProfileService
	cfg              AuthConfig
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	profileRepo repos.ProfileRepo,
	userTokenRepo repos.UserTokenRepo,
	userIdentityRepo repos.UserIdentityRepo,
	verifier OIDCVerifier,
	profiles ProfileService,
	cfg AuthConfig,
) (AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		return nil, fmt.Errorf("jwt secret key required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &authService{
		db:               db,
		log:              log.With("service", "AuthService"),
		profileRepo:      profileRepo,
		userTokenRepo:    userTokenRepo,
		userIdentityRepo: userIdentityRepo,
		verifier:         verifier,
		profiles:         profiles,
		cfg:              cfg,
	}, nil
}

func (as *authService) GetAccessTTL() time.Duration { return as.cfg.AccessTTL }

func (as *authService) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*SignInResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != types.ProviderGoogle && provider != types.ProviderLinkedIn {
		return nil, fmt.Errorf("unsupported provider %q: %w", provider, types.ErrInvalidArgument)
	}
	if as.verifier == nil || !as.verifier.Enabled(provider) {
		return nil, fmt.Errorf("%s: %w: %w", provider, ErrProviderNotConfigured, types.ErrInvalidArgument)
	}
	ext, err := as.verifier.Verify(ctx, provider, idToken, nonce)
	if err != nil {
		as.log.Warn("id_token rejected", "provider", provider, "error", err)
		return nil, fmt.Errorf("verify id_token: %v: %w", err, types.ErrUnauthenticated)
	}
	return as.signIn(ctx, ext, uuid.Nil)
}

func (as *authService) SignInDemo(ctx context.Context) (*SignInResult, error) {
	if !as.cfg.DemoMode || as.cfg.DemoUserID == uuid.Nil {
		return nil, fmt.Errorf("demo sign-in disabled: %w", types.ErrForbidden)
	}
	ext := &ExternalIdentity{
		Provider:      types.ProviderDemo,
		Sub:           as.cfg.DemoUserID.String(),
		Email:         as.cfg.DemoEmail,
		EmailVerified: true,
		Name:          as.cfg.DemoName,
	}
	return as.signIn(ctx, ext, as.cfg.DemoUserID)
}

func (as *authService) signIn(ctx context.Context, ext *ExternalIdentity, preferredUserID uuid.UUID) (*SignInResult, error) {
	var tokens *Tokens
	var userID uuid.UUID
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		uid, err := as.resolveUser(dbc, ext, preferredUserID)
		if err != nil {
			return err
		}
		userID = uid
		if err := as.purgeExpiredTokens(dbc, uid); err != nil {
			return err
		}
		tokens, err = as.issueTokens(dbc, uid, ext.Provider, ext.Email)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	as.log.Info("User signed in", "user_id", userID, "provider", ext.Provider)

	state := session.Reduce(session.Initial(), session.SignedIn{UserID: userID, Email: ext.Email, Provider: ext.Provider})
	profile := as.profiles.Load(ctx, ProfileIdentity{UserID: userID, Email: ext.Email, FullName: ext.FullName()})
	state = session.Reduce(state, session.ProfileEvent(profile))

	return &SignInResult{Tokens: *tokens, Session: state, Profile: profile}, nil
}

// resolveUser maps (provider, sub) to a user id, linking to an existing
// profile with the same verified email before minting a new id.
func (as *authService) resolveUser(dbc dbctx.Context, ext *ExternalIdentity, preferredUserID uuid.UUID) (uuid.UUID, error) {
	identity, err := as.userIdentityRepo.GetByProviderSub(dbc, ext.Provider, ext.Sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup identity: %w", err)
	}
	if identity != nil {
		return identity.UserID, nil
	}

	userID := preferredUserID
	if userID == uuid.Nil && ext.EmailVerified && ext.Email != "" {
		existing, err := as.profileRepo.GetByEmails(dbc, []string{ext.Email})
		if err != nil {
			return uuid.Nil, fmt.Errorf("lookup profile by email: %w", err)
		}
		if len(existing) > 0 {
			userID = existing[0].ID
		}
	}
	if userID == uuid.Nil {
		userID = uuid.New()
	}

	if _, err := as.userIdentityRepo.Create(dbc, []*types.UserIdentity{{
		UserID:        userID,
		Provider:      ext.Provider,
		ProviderSub:   ext.Sub,
		Email:         ext.Email,
		EmailVerified: ext.EmailVerified,
	}}); err != nil {
		if dbstore.IsUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("identity created concurrently, retry sign-in: %w", types.ErrConflict)
		}
		return uuid.Nil, fmt.Errorf("create identity: %w", err)
	}
	return userID, nil
}

func (as *authService) purgeExpiredTokens(dbc dbctx.Context, userID uuid.UUID) error {
	existing, err := as.userTokenRepo.GetByUserIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	now := time.Now()
	var expired []uuid.UUID
	for _, t := range existing {
		if t != nil && t.ExpiresAt.Before(now) {
			expired = append(expired, t.ID)
		}
	}
	if len(expired) == 0 {
		return nil
	}
	return as.userTokenRepo.DeleteByIDs(dbc, expired)
}

func (as *authService) issueTokens(dbc dbctx.Context, userID uuid.UUID, provider, email string) (*Tokens, error) {
	sessionID := uuid.New()
	now := time.Now()
	access, err := as.generateAccessToken(userID, sessionID, provider, email, now)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	row := &types.UserToken{
		ID:           sessionID,
		UserID:       userID,
		Provider:     provider,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(as.cfg.RefreshTTL),
	}
	if _, err := as.userTokenRepo.Create(dbc, []*types.UserToken{row}); err != nil {
		return nil, fmt.Errorf("create user token: %w", err)
	}
	return &Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(as.cfg.AccessTTL.Seconds()),
		ExpiresAt:    now.Add(as.cfg.AccessTTL).UTC(),
	}, nil
}

func (as *authService) generateAccessToken(userID, sessionID uuid.UUID, provider, email string, now time.Time) (string, error) {
	claims := JWTClaims{
		SessionID: sessionID.String(),
		Provider:  provider,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.cfg.JWTSecretKey))
}

// randomToken returns n random bytes, base64url encoded without padding.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token required: %w", types.ErrUnauthenticated)
	}
	found, err := as.userTokenRepo.GetByRefreshTokens(dbctx.Context{Ctx: ctx}, []string{refreshToken})
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, fmt.Errorf("unknown refresh token: %w", types.ErrUnauthenticated)
	}
	existing := found[0]
	if existing.ExpiresAt.Before(time.Now()) {
		if err := as.userTokenRepo.DeleteByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{existing.ID}); err != nil {
			as.log.Warn("Failed to delete expired token", "error", err)
		}
		return nil, fmt.Errorf("refresh token expired: %w", types.ErrUnauthenticated)
	}

	var out *Tokens
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		email := ""
		if profile, err := as.profileRepo.GetByID(dbc, existing.UserID); err == nil && profile != nil {
			email = profile.Email
		}
		next, err := as.issueTokens(dbc, existing.UserID, existing.Provider, email)
		if err != nil {
			return err
		}
		if err := as.userTokenRepo.DeleteByIDs(dbc, []uuid.UUID{existing.ID}); err != nil {
			return fmt.Errorf("remove old refresh token: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	return out, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.SessionID == uuid.Nil {
		return fmt.Errorf("no session in context: %w", types.ErrUnauthenticated)
	}
	if err := as.userTokenRepo.DeleteByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{rd.SessionID}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	as.log.Info("User signed out", "user_id", rd.UserID)
	return nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.cfg.JWTSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %v: %w", err, types.ErrUnauthenticated)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token: %w", types.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid user id in token: %w", types.ErrUnauthenticated)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ctx, fmt.Errorf("invalid session id in token: %w", types.ErrUnauthenticated)
	}

	rows, err := as.userTokenRepo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{sessionID})
	if err != nil {
		return ctx, fmt.Errorf("load session: %w", err)
	}
	if len(rows) == 0 || rows[0].UserID != userID || rows[0].AccessToken != tokenString {
		return ctx, fmt.Errorf("session revoked: %w", types.ErrUnauthenticated)
	}

	rd := &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		SessionID:   sessionID,
		Provider:    claims.Provider,
		Email:       claims.Email,
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) SessionState(ctx context.Context) session.State {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return session.Initial()
	}
	state := session.Reduce(session.Initial(), session.SessionRestored{UserID: rd.UserID, Email: rd.Email, Provider: rd.Provider})
	profile := as.profiles.Load(ctx, ProfileIdentity{UserID: rd.UserID, Email: rd.Email})
	return session.Reduce(state, session.ProfileEvent(profile))
}
