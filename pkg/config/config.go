package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Outbox  OutboxConfig
	Ads     AdsConfig
	Flags   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"THEMEBOARD_APP_ENV" required:"true"`
	Port         string `envconfig:"THEMEBOARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"THEMEBOARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"THEMEBOARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"THEMEBOARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"THEMEBOARD_DB_DSN"`
	Driver string `envconfig:"THEMEBOARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"THEMEBOARD_DB_HOST"`
	LegacyPort     int    `envconfig:"THEMEBOARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"THEMEBOARD_DB_USER"`
	LegacyPassword string `envconfig:"THEMEBOARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"THEMEBOARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"THEMEBOARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"THEMEBOARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THEMEBOARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THEMEBOARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THEMEBOARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"THEMEBOARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"THEMEBOARD_REDIS_ADDR"`
	Password     string        `envconfig:"THEMEBOARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"THEMEBOARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THEMEBOARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THEMEBOARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THEMEBOARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THEMEBOARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THEMEBOARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"THEMEBOARD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"THEMEBOARD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"THEMEBOARD_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"THEMEBOARD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"THEMEBOARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"THEMEBOARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AdSlotsTopic        string `envconfig:"THEMEBOARD_PUBSUB_AD_SLOTS_TOPIC" default:"tb-ad-slot-events"`
	AdSlotsSubscription string `envconfig:"THEMEBOARD_PUBSUB_AD_SLOTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"THEMEBOARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"THEMEBOARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"THEMEBOARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// AdsConfig drives the theme advertisement slot scheduler.
type AdsConfig struct {
	// SlotCapacity is the number of concurrently active paid placements.
	SlotCapacity int `envconfig:"THEMEBOARD_ADS_SLOT_CAPACITY" default:"5"`
	// SweepInterval must stay shorter than the minimum ad duration.
	SweepInterval  time.Duration `envconfig:"THEMEBOARD_ADS_SWEEP_INTERVAL" default:"5m"`
	ResyncInterval time.Duration `envconfig:"THEMEBOARD_ADS_RESYNC_INTERVAL" default:"30m"`
	// SnapshotTTL must exceed the resync interval so a missed cycle never
	// leaves consumers reading an evicted snapshot.
	SnapshotTTL time.Duration `envconfig:"THEMEBOARD_ADS_SNAPSHOT_TTL" default:"1h"`
	// RotationIntervalSeconds is how often the banner consumer rotates ads.
	RotationIntervalSeconds int `envconfig:"THEMEBOARD_ADS_ROTATION_INTERVAL_SECONDS" default:"6"`
	DefaultDurationDays     int `envconfig:"THEMEBOARD_ADS_DEFAULT_DURATION_DAYS" default:"7"`
	MaxDurationDays         int `envconfig:"THEMEBOARD_ADS_MAX_DURATION_DAYS" default:"90"`
	// SlotPricePoints is the point cost per advertised day.
	SlotPricePoints int64 `envconfig:"THEMEBOARD_ADS_SLOT_PRICE_POINTS" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"THEMEBOARD_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
