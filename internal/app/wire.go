package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpapi "github.com/yungbote/speakwell-backend/internal/http"
	httpH "github.com/yungbote/speakwell-backend/internal/http/handlers"
	httpMW "github.com/yungbote/speakwell-backend/internal/http/middleware"
	"github.com/yungbote/speakwell-backend/internal/platform/localmedia"
	"github.com/yungbote/speakwell-backend/internal/platform/sendgrid"
	"github.com/yungbote/speakwell-backend/internal/services"
)

// DemoUserID is stable across restarts so demo tokens keep resolving to the
// same seeded profile.
var DemoUserID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("speakwell:demo-user"))

type Services struct {
	Auth       services.AuthService
	Profile    services.ProfileService
	Avatar     services.AvatarService
	Skill      services.SkillService
	Speech     services.SpeechService
	Evaluation services.EvaluationService
	Analytics  services.AnalyticsService
	ShareCard  services.ShareCardService
	Invite     services.InviteService
}

func wireServices(ctx context.Context, a *App, storage storageSelection, emitter services.SSEEmitter) (Services, error) {
	log, cfg, rs := a.Log, a.Cfg, a.Repos
	notifier := services.NewNotifier(emitter)

	avatar, err := services.NewAvatarService(log, rs.Profile, storage.Bucket, notifier, services.AvatarConfig{})
	if err != nil {
		return Services{}, fmt.Errorf("init avatar service: %w", err)
	}
	profiles := services.NewProfileService(log, rs.Profile, avatar, notifier, a.Metrics, services.ProfileConfig{
		FetchTimeout:  ms(cfg.ProfileFetchTimeoutMS),
		CreateTimeout: ms(cfg.ProfileCreateTimeoutMS),
		RetryDelay:    ms(cfg.ProfileRetryDelayMS),
	})

	secret := cfg.JWTSecretKey
	if secret == "" && a.Mode == ModeDemo {
		secret = uuid.NewString()
		log.Warn("Using an ephemeral JWT secret for demo mode")
	}
	verifier := services.NewOIDCVerifier(&http.Client{Timeout: 10 * time.Second}, services.OIDCConfig{
		GoogleClientID:   cfg.GoogleOIDCClientID,
		LinkedInClientID: cfg.LinkedInOIDCClientID,
	})
	auth, err := services.NewAuthService(a.DB, log, rs.Profile, rs.UserToken, rs.UserIdentity, verifier, profiles, services.AuthConfig{
		JWTSecretKey: secret,
		AccessTTL:    cfg.AccessTTL(),
		RefreshTTL:   cfg.RefreshTTL(),
		DemoMode:     a.Mode == ModeDemo,
		DemoUserID:   DemoUserID,
		DemoEmail:    cfg.DemoEmail,
		DemoName:     cfg.DemoName,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	skills := services.NewSkillService(a.DB, log, rs, notifier)
	media := localmedia.New(log, cfg.MediaWorkDir)
	if !media.Available() {
		log.Warn("ffprobe not found; recording durations will not be detected")
	}
	speeches := services.NewSpeechService(a.DB, log, rs, storage.Bucket, media, notifier, services.SpeechConfig{
		PublicBaseURL:     cfg.PublicBaseURL,
		MaxRecordingBytes: int64(cfg.MaxRecordingMB) << 20,
	})
	cards, err := services.NewShareCardService(log, storage.Bucket)
	if err != nil {
		return Services{}, fmt.Errorf("init share card service: %w", err)
	}

	var mailer sendgrid.Mailer
	if strings.TrimSpace(cfg.SendgridAPIKey) != "" {
		mailer, err = sendgrid.New(log, sendgrid.Config{
			APIKey:           cfg.SendgridAPIKey,
			DefaultFromEmail: cfg.SendgridFromEmail,
			DefaultFromName:  cfg.SendgridFromName,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init sendgrid: %w", err)
		}
	} else {
		log.Info("Email invites disabled (no sendgrid_api_key)")
	}

	return Services{
		Auth:       auth,
		Profile:    profiles,
		Avatar:     avatar,
		Skill:      skills,
		Speech:     speeches,
		Evaluation: services.NewEvaluationService(a.DB, log, rs, notifier),
		Analytics:  services.NewAnalyticsService(log, rs, skills),
		ShareCard:  cards,
		Invite:     services.NewInviteService(log, mailer, speeches, cards, rs.Profile),
	}, nil
}

func wireRouter(a *App, storage storageSelection) httpapi.RouterConfig {
	s := a.Services
	serviceName := ""
	if a.Cfg.OtelEnabled {
		serviceName = "speakwell"
	}
	return httpapi.RouterConfig{
		Log:            a.Log,
		Metrics:        a.Metrics,
		ServiceName:    serviceName,
		AllowedOrigins: a.Cfg.Origins(),
		MediaDir:       storage.MediaDir,

		AuthMiddleware: httpMW.NewAuthMiddleware(a.Log, s.Auth),

		AuthHandler:       httpH.NewAuthHandler(s.Auth, string(a.Mode)),
		ProfileHandler:    httpH.NewProfileHandler(s.Profile, s.Avatar, s.Analytics),
		SkillHandler:      httpH.NewSkillHandler(s.Skill),
		SpeechHandler:     httpH.NewSpeechHandler(s.Speech, s.Evaluation, s.ShareCard, s.Invite, a.Metrics),
		EvaluationHandler: httpH.NewEvaluationHandler(s.Evaluation, a.Metrics),
		RealtimeHandler:   httpH.NewRealtimeHandler(a.Log, a.SSEHub, a.Metrics),
		HealthHandler:     httpH.NewHealthHandler(a.store.Ping),
	}
}
