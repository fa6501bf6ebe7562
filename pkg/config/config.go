package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Checkout     CheckoutConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FCM          FCMConfig
	Realtime     RealtimeConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Housekeeping HousekeepingConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if !cfg.Checkout.UnmatchedItemPolicy.IsValid() {
		return nil, fmt.Errorf("%s must be one of skip, reject (got %q)", EnvCheckoutUnmatchedPolicy, cfg.Checkout.UnmatchedItemPolicy)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKIT_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKIT_APP_PORT" default:"3005"`
	LogLevel     string `envconfig:"MARKIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKIT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MARKIT_LOG_FORMAT" default:"json"`

	// Timezone bounds calendar days for delivery filters and earnings periods.
	Timezone string `envconfig:"MARKIT_TIMEZONE" default:"Asia/Kolkata"`
}

// Location falls back to UTC when the zone cannot be loaded.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKIT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKIT_DB_DSN"`
	Driver string `envconfig:"MARKIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKIT_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKIT_DB_USER"`
	LegacyPassword string `envconfig:"MARKIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKIT_REDIS_ADDR"`
	Password     string        `envconfig:"MARKIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only covers verification; tokens are minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"MARKIT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MARKIT_JWT_ISSUER" default:"markit"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKIT_AUTO_MIGRATE" default:"false"`
}

// UnmatchedItemPolicy decides what happens to a cart line whose size has no stock item.
type UnmatchedItemPolicy string

const (
	UnmatchedItemSkip   UnmatchedItemPolicy = "skip"
	UnmatchedItemReject UnmatchedItemPolicy = "reject"
)

func (p UnmatchedItemPolicy) IsValid() bool {
	switch p {
	case UnmatchedItemSkip, UnmatchedItemReject:
		return true
	default:
		return false
	}
}

type CheckoutConfig struct {
	UnmatchedItemPolicy UnmatchedItemPolicy `envconfig:"MARKIT_CHECKOUT_UNMATCHED_POLICY" default:"skip"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MARKIT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	RequestIdempotency   time.Duration `envconfig:"MARKIT_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKIT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MARKIT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKIT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"MARKIT_PUBSUB_ORDERS_TOPIC" default:"markit-trynbuy-events"`
	NotificationSub       string `envconfig:"MARKIT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"markit-trynbuy-notifications"`
	AnalyticsTopic        string `envconfig:"MARKIT_PUBSUB_ANALYTICS_TOPIC" default:"markit-analytics-events"`
	AnalyticsSubscription string `envconfig:"MARKIT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"markit-analytics-sales"`
}

type FCMConfig struct {
	Enabled bool `envconfig:"MARKIT_FCM_ENABLED" default:"true"`
	// ProjectID falls back to the GCP project when empty.
	ProjectID string `envconfig:"MARKIT_FCM_PROJECT_ID"`
}

type RealtimeConfig struct {
	Channel string `envconfig:"MARKIT_REALTIME_CHANNEL" default:"markit:realtime"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"MARKIT_BIGQUERY_DATASET" default:"markit"`
	SalesTable string `envconfig:"MARKIT_BIGQUERY_SALES_TABLE" default:"trynbuy_sales"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKIT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKIT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKIT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// HousekeepingConfig drives the retention sweeps run by the housekeeping worker.
type HousekeepingConfig struct {
	Interval        time.Duration `envconfig:"MARKIT_HOUSEKEEPING_INTERVAL" default:"24h"`
	OutboxRetention time.Duration `envconfig:"MARKIT_HOUSEKEEPING_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"MARKIT_HOUSEKEEPING_DLQ_RETENTION" default:"2160h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MARKIT_CORS_ALLOWED_ORIGINS" default:"http://localhost:8100,http://localhost:8101,http://localhost:3000,https://markit.co.in"`
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
