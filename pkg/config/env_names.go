package config

// EnvPrefix is the envconfig prefix shared by every setting.
const EnvPrefix = "primecut"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv   = "PRIMECUT_APP_ENV"
	EnvPort     = "PRIMECUT_APP_PORT"
	EnvDBDSN    = "PRIMECUT_DB_DSN"
	EnvDBHost   = "PRIMECUT_DB_HOST"
	EnvDBUser   = "PRIMECUT_DB_USER"
	EnvDBName   = "PRIMECUT_DB_NAME"
	EnvRedisURL = "PRIMECUT_REDIS_URL"

	EnvJWTSecret  = "PRIMECUT_JWT_SECRET"
	EnvJWTIssuer  = "PRIMECUT_JWT_ISSUER"
	EnvJWTExpMins = "PRIMECUT_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "PRIMECUT_GCP_PROJECT_ID"

	EnvPubSubNotificationTopic        = "PRIMECUT_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSubscription = "PRIMECUT_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvStripeAPIKey        = "PRIMECUT_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "PRIMECUT_STRIPE_WEBHOOK_SECRET"

	EnvLalamoveAPIKey    = "PRIMECUT_LALAMOVE_API_KEY"
	EnvLalamoveAPISecret = "PRIMECUT_LALAMOVE_API_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
