package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/yungbote/speakwell-backend/internal/data/db"
)

const (
	envPrefix     = "SPEAKWELL_"
	envConfigFile = "SPEAKWELL_CONFIG"
)

type Mode string

const (
	// ModeLive talks to postgres and cloud storage.
	ModeLive Mode = "live"
	// ModeDemo runs on an in-memory database and local disk, seeded with the
	// skill catalog and a demo profile. Selected when no database is configured.
	ModeDemo Mode = "demo"
)

// Config is flat so every key maps to one SPEAKWELL_<KEY> variable.
type Config struct {
	Addr          string `koanf:"addr"`
	LogMode       string `koanf:"log_mode"`
	PublicBaseURL string `koanf:"public_base_url"`
	// AllowedOrigins is a comma separated list of frontend origins.
	AllowedOrigins string `koanf:"allowed_origins"`

	DatabaseURL      string `koanf:"database_url"`
	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     string `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresName     string `koanf:"postgres_name"`
	PostgresSSLMode  string `koanf:"postgres_sslmode"`

	JWTSecretKey           string `koanf:"jwt_secret_key"`
	AccessTokenTTLSeconds  int    `koanf:"access_token_ttl_seconds"`
	RefreshTokenTTLSeconds int    `koanf:"refresh_token_ttl_seconds"`
	GoogleOIDCClientID     string `koanf:"google_oidc_client_id"`
	LinkedInOIDCClientID   string `koanf:"linkedin_oidc_client_id"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisChannel  string `koanf:"redis_channel"`

	ObjectStorageMode   string `koanf:"object_storage_mode"`
	StorageEmulatorHost string `koanf:"storage_emulator_host"`
	GCPCredentials      string `koanf:"gcp_credentials"`
	MediaBucketName     string `koanf:"media_bucket_name"`
	RecordingBucketName string `koanf:"recording_bucket_name"`
	MediaCDNDomain      string `koanf:"media_cdn_domain"`
	MediaLocalDir       string `koanf:"media_local_dir"`
	MediaWorkDir        string `koanf:"media_work_dir"`
	MaxRecordingMB      int    `koanf:"max_recording_mb"`

	SendgridAPIKey    string `koanf:"sendgrid_api_key"`
	SendgridFromEmail string `koanf:"sendgrid_from_email"`
	SendgridFromName  string `koanf:"sendgrid_from_name"`

	OtelEnabled     bool    `koanf:"otel_enabled"`
	OtelEndpoint    string  `koanf:"otel_endpoint"`
	OtelHeaders     string  `koanf:"otel_headers"`
	OtelInsecure    bool    `koanf:"otel_insecure"`
	OtelSampleRatio float64 `koanf:"otel_sample_ratio"`
	Environment     string  `koanf:"environment"`
	Version         string  `koanf:"version"`
	MetricsEnabled  bool    `koanf:"metrics_enabled"`

	ProfileFetchTimeoutMS  int `koanf:"profile_fetch_timeout_ms"`
	ProfileCreateTimeoutMS int `koanf:"profile_create_timeout_ms"`
	ProfileRetryDelayMS    int `koanf:"profile_retry_delay_ms"`

	DemoEmail string `koanf:"demo_email"`
	DemoName  string `koanf:"demo_name"`
}

func DefaultConfig() Config {
	return Config{
		Addr:                   ":8080",
		LogMode:                "development",
		PublicBaseURL:          "http://localhost:5173",
		AccessTokenTTLSeconds:  3600,
		RefreshTokenTTLSeconds: 30 * 24 * 3600,
		RedisChannel:           "speakwell:sse",
		MediaLocalDir:          "./media",
		MaxRecordingMB:         512,
		SendgridFromName:       "SpeakWell",
		OtelSampleRatio:        0.1,
		Environment:            "development",
		ProfileFetchTimeoutMS:  10000,
		ProfileCreateTimeoutMS: 15000,
		ProfileRetryDelayMS:    1000,
		DemoEmail:              "demo@speakwell.local",
		DemoName:               "Demo Speaker",
	}
}

// LoadConfig layers defaults, the optional YAML file named by
// SPEAKWELL_CONFIG, then SPEAKWELL_* environment variables.
func LoadConfig() (Config, error) {
	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(envConfigFile)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SPEAKWELL_POSTGRES_HOST -> postgres_host. Keys stay flat.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.AccessTokenTTLSeconds <= 0 || c.RefreshTokenTTLSeconds <= 0 {
		return fmt.Errorf("token ttls must be positive")
	}
	if c.Mode() == ModeLive && strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("jwt_secret_key required when a database is configured")
	}
	if c.OtelSampleRatio < 0 || c.OtelSampleRatio > 1 {
		return fmt.Errorf("otel_sample_ratio must be within [0,1], got %v", c.OtelSampleRatio)
	}
	return nil
}

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		URL:      c.DatabaseURL,
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresName,
		SSLMode:  c.PostgresSSLMode,
	}
}

// Mode is demo whenever the database connection parameters are absent.
func (c Config) Mode() Mode {
	if c.Postgres().Configured() {
		return ModeLive
	}
	return ModeDemo
}

func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
