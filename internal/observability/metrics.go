package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

const (
	namespace             = "speakwell"
	defaultScrapeInterval = 10 * time.Second
)

// Metrics owns a private registry so tests can build as many as they like.
// All methods are safe on a nil receiver, which is what callers get when
// metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry
	interval time.Duration

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	profileLoads       *prometheus.CounterVec
	profileLoadLatency *prometheus.HistogramVec

	evaluations  *prometheus.CounterVec
	invitesSent  prometheus.Counter
	sseClients   prometheus.Gauge
	redisUp      prometheus.Gauge
	redisLatency prometheus.Gauge
}

type Option func(*Metrics)

// WithScrapeInterval sets how often the background collectors poll.
func WithScrapeInterval(d time.Duration) Option {
	return func(m *Metrics) {
		if d > 0 {
			m.interval = d
		}
	}
}

func New(opts ...Option) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		interval: defaultScrapeInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(m.registry)

	m.apiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "API requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.apiLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "API request latency by method, route and status.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route", "status"})
	m.apiInflight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "inflight_requests",
		Help:      "In-flight API requests.",
	})

	m.profileLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "loads_total",
		Help:      "Profile loads by outcome (loaded, offline, failed).",
	}, []string{"state"})
	m.profileLoadLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "load_duration_seconds",
		Help:      "Profile load latency including the retry.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
	}, []string{"state"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feedback",
		Name:      "evaluations_total",
		Help:      "Evaluations recorded by source (share_link, written).",
	}, []string{"source"})
	m.invitesSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feedback",
		Name:      "invites_sent_total",
		Help:      "Evaluation invite emails accepted by the mail provider.",
	})
	m.sseClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "sse_clients",
		Help:      "Connected SSE clients.",
	})
	m.redisUp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "up",
		Help:      "1 when the last redis ping succeeded.",
	})
	m.redisLatency = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "ping_seconds",
		Help:      "Latency of the last successful redis ping.",
	})
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveProfileLoad(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.profileLoads.WithLabelValues(state).Inc()
	m.profileLoadLatency.WithLabelValues(state).Observe(d.Seconds())
}

func (m *Metrics) IncEvaluation(source string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(source) == "" {
		source = "unknown"
	}
	m.evaluations.WithLabelValues(source).Inc()
}

func (m *Metrics) AddInvitesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invitesSent.Add(float64(n))
}

func (m *Metrics) SSEClientConnected() {
	if m == nil {
		return
	}
	m.sseClients.Inc()
}

func (m *Metrics) SSEClientDisconnected() {
	if m == nil {
		return
	}
	m.sseClients.Dec()
}

// RegisterDB exports database/sql pool statistics for the gorm connection.
func (m *Metrics) RegisterDB(log *logger.Logger, db *gorm.DB, name string) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
		}
		return
	}
	if err := m.registry.Register(collectors.NewDBStatsCollector(sqlDB, name)); err != nil && log != nil {
		log.Warn("metrics: db stats collector not registered", "error", err)
	}
}

// StartRedisCollector pings rdb on every scrape interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.pingRedis(ctx, log, rdb)
			}
		}
	}()
}

func (m *Metrics) pingRedis(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	start := time.Now()
	if err := rdb.Ping(ctx).Err(); err != nil {
		m.redisUp.Set(0)
		if log != nil {
			log.Warn("metrics: redis ping failed", "error", err)
		}
		return
	}
	m.redisUp.Set(1)
	m.redisLatency.Set(time.Since(start).Seconds())
}
