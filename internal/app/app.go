package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/db"
	"github.com/yungbote/speakwell-backend/internal/data/repos"
	httpapi "github.com/yungbote/speakwell-backend/internal/http"
	"github.com/yungbote/speakwell-backend/internal/observability"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/realtime"
	"github.com/yungbote/speakwell-backend/internal/realtime/bus"
	"github.com/yungbote/speakwell-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Mode     Mode
	DB       *gorm.DB
	Repos    repos.Set
	Services Services
	Server   *httpapi.Server
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	store        *db.Service
	bus          bus.Bus
	redisMetrics goredis.UniversalClient
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New wires every component. Missing database settings put the process in
// demo mode instead of failing; malformed settings still fail.
func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg, Mode: cfg.Mode()}

	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: "speakwell",
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	if cfg.MetricsEnabled {
		a.Metrics = observability.New()
	}

	if a.Mode == ModeDemo {
		log.Warn("No database configured: running in DEMO mode with in-memory storage; data is lost on exit")
	}
	a.store, err = OpenDatabase(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = a.store.DB()
	if err := a.store.AutoMigrateAll(); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a.Metrics.RegisterDB(log, a.DB, string(a.store.Dialect()))

	a.SSEHub = realtime.NewSSEHub(log)
	emitter, err := a.wireRealtime(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	storage, err := resolveBucketService(log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Repos = repos.NewSet(a.DB, log)
	a.Services, err = wireServices(ctx, a, storage, emitter)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.Mode == ModeDemo {
		if err := seedDemo(ctx, a); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	a.Server = httpapi.NewServer(wireRouter(a, storage))
	return a, nil
}

func OpenDatabase(log *logger.Logger, cfg Config) (*db.Service, error) {
	if cfg.Mode() == ModeDemo {
		store, err := db.NewSQLiteService(log, "speakwell-demo")
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return store, nil
	}
	store, err := db.NewPostgresService(log, cfg.Postgres())
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	return store, nil
}

// wireRealtime returns the emitter services publish through. With redis,
// every instance forwards bus messages into its own hub.
func (a *App) wireRealtime(ctx context.Context) (emitter services.SSEEmitter, err error) {
	if a.Cfg.RedisAddr == "" {
		return &services.HubEmitter{Hub: a.SSEHub}, nil
	}
	a.bus, err = bus.NewRedisBus(a.Log, bus.RedisConfig{
		Addr:     a.Cfg.RedisAddr,
		Password: a.Cfg.RedisPassword,
		Channel:  a.Cfg.RedisChannel,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis bus: %w", err)
	}
	if err := a.bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
		return nil, fmt.Errorf("start sse forwarder: %w", err)
	}
	if a.Metrics != nil {
		a.redisMetrics = goredis.NewClient(&goredis.Options{Addr: a.Cfg.RedisAddr, Password: a.Cfg.RedisPassword})
		a.Metrics.StartRedisCollector(ctx, a.Log, a.redisMetrics)
	}
	return &services.RedisEmitter{Bus: a.bus, Log: a.Log}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Log.Info("Starting SpeakWell API", "addr", a.Cfg.Addr, "mode", a.Mode)
	return a.Server.Run(ctx, a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.redisMetrics != nil {
		_ = a.redisMetrics.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
