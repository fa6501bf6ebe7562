package config

// EnvPrefix is handed to envconfig; every tag already carries the full variable name.
const EnvPrefix = "MARKIT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MARKIT_APP_ENV"
	EnvPort     = "MARKIT_APP_PORT"
	EnvLogLvl   = "MARKIT_LOG_LEVEL"
	EnvDBDSN    = "MARKIT_DB_DSN"
	EnvDBHost   = "MARKIT_DB_HOST"
	EnvDBUser   = "MARKIT_DB_USER"
	EnvDBName   = "MARKIT_DB_NAME"
	EnvDBPass   = "MARKIT_DB_PASSWORD"
	EnvDBPort   = "MARKIT_DB_PORT"
	EnvRedisURL = "MARKIT_REDIS_URL"

	EnvJWTSecret = "MARKIT_JWT_SECRET"
	EnvJWTIssuer = "MARKIT_JWT_ISSUER"

	EnvAutoMigrate             = "MARKIT_AUTO_MIGRATE"
	EnvCheckoutUnmatchedPolicy = "MARKIT_CHECKOUT_UNMATCHED_POLICY"

	EnvGCPProjectID          = "MARKIT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic     = "MARKIT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotificationSub = "MARKIT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsTopic  = "MARKIT_PUBSUB_ANALYTICS_TOPIC"
	EnvPubSubAnalyticsSub    = "MARKIT_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvCORSAllowedOrigins    = "MARKIT_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
