package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/speakwell-backend/internal/http/handlers"
	httpMW "github.com/yungbote/speakwell-backend/internal/http/middleware"
	"github.com/yungbote/speakwell-backend/internal/observability"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string
	// MediaDir is served under /media when objects live on local disk.
	MediaDir string

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	ProfileHandler    *httpH.ProfileHandler
	SkillHandler      *httpH.SkillHandler
	SpeechHandler     *httpH.SpeechHandler
	EvaluationHandler *httpH.EvaluationHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestIDs())
	r.Use(httpMW.AccessLog(cfg.Log, cfg.Metrics, "/healthcheck", "/metrics"))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.MediaDir != "" {
		r.Static("/media", cfg.MediaDir)
	}

	api := r.Group("/api")
	{
		// Public
		if cfg.AuthHandler != nil {
			api.POST("/auth/refresh", cfg.AuthHandler.Refresh)
			api.POST("/auth/demo", cfg.AuthHandler.SignInDemo)
			api.POST("/auth/:provider", cfg.AuthHandler.SignIn)
		}
		if cfg.SkillHandler != nil {
			api.GET("/skills", cfg.SkillHandler.ListCatalog)
		}
		if cfg.EvaluationHandler != nil {
			api.GET("/evaluate/:token", cfg.EvaluationHandler.GetForm)
			api.POST("/evaluate/:token", cfg.EvaluationHandler.Submit)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/auth/logout", cfg.AuthHandler.Logout)
			protected.GET("/session", cfg.AuthHandler.Session)
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		if cfg.ProfileHandler != nil {
			protected.GET("/me", cfg.ProfileHandler.GetMe)
			protected.PATCH("/me", cfg.ProfileHandler.UpdateMe)
			protected.POST("/me/avatar", cfg.ProfileHandler.UploadAvatar)
			protected.GET("/me/progress", cfg.ProfileHandler.Progress)
		}

		if cfg.SkillHandler != nil {
			protected.GET("/me/skills", cfg.SkillHandler.ListMine)
			protected.PUT("/me/skills", cfg.SkillHandler.Reconcile)
			protected.GET("/me/skills/stats", cfg.SkillHandler.Stats)
			protected.GET("/me/skills/:skillID/removable", cfg.SkillHandler.Removable)
			protected.DELETE("/me/skills/:skillID", cfg.SkillHandler.Remove)
			protected.POST("/onboarding", cfg.SkillHandler.CompleteOnboarding)
		}

		if cfg.SpeechHandler != nil {
			protected.GET("/speeches", cfg.SpeechHandler.List)
			protected.POST("/speeches", cfg.SpeechHandler.Create)
			protected.GET("/speeches/:id", cfg.SpeechHandler.Get)
			protected.PATCH("/speeches/:id", cfg.SpeechHandler.Update)
			protected.DELETE("/speeches/:id", cfg.SpeechHandler.Delete)
			protected.PUT("/speeches/:id/skills", cfg.SpeechHandler.UpdateSkills)
			protected.GET("/speeches/:id/summary", cfg.SpeechHandler.Summary)
			protected.POST("/speeches/:id/share", cfg.SpeechHandler.Share)
			protected.GET("/speeches/:id/share/qr.png", cfg.SpeechHandler.ShareQR)
			protected.POST("/speeches/:id/invite", cfg.SpeechHandler.Invite)
			protected.POST("/speeches/:id/recording", cfg.SpeechHandler.UploadRecording)
			protected.POST("/speeches/:id/evaluations", cfg.SpeechHandler.RecordWrittenEvaluation)
		}
	}

	return r
}
