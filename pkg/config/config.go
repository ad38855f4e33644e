package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Lalamove     LalamoveConfig
	Pricing      PricingConfig
	Store        StoreConfig
	Notify       NotifyConfig
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
	Env          string `envconfig:"PRIMECUT_APP_ENV" required:"true"`
	Port         string `envconfig:"PRIMECUT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRIMECUT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRIMECUT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PRIMECUT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRIMECUT_DB_DSN"`
	Driver string `envconfig:"PRIMECUT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRIMECUT_DB_HOST"`
	LegacyPort     int    `envconfig:"PRIMECUT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRIMECUT_DB_USER"`
	LegacyPassword string `envconfig:"PRIMECUT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRIMECUT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRIMECUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRIMECUT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRIMECUT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRIMECUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRIMECUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRIMECUT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRIMECUT_REDIS_ADDR"`
	Password     string        `envconfig:"PRIMECUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRIMECUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRIMECUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRIMECUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRIMECUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRIMECUT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRIMECUT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PRIMECUT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRIMECUT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PRIMECUT_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PRIMECUT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PRIMECUT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"PRIMECUT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"PRIMECUT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PRIMECUT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PRIMECUT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PRIMECUT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"PRIMECUT_PUBSUB_NOTIFICATION_TOPIC" default:"primecut-notification-events"`
	NotificationSubscription string `envconfig:"PRIMECUT_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PRIMECUT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PRIMECUT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PRIMECUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"PRIMECUT_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"PRIMECUT_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"PRIMECUT_STRIPE_ENV" default:"test"`
	Currency      string `envconfig:"PRIMECUT_STRIPE_CURRENCY" default:"hkd"`
	SuccessURL    string `envconfig:"PRIMECUT_STRIPE_SUCCESS_URL"`
	CancelURL     string `envconfig:"PRIMECUT_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type LalamoveConfig struct {
	BaseURL        string        `envconfig:"PRIMECUT_LALAMOVE_BASE_URL" default:"https://rest.sandbox.lalamove.com"`
	APIKey         string        `envconfig:"PRIMECUT_LALAMOVE_API_KEY"`
	APISecret      string        `envconfig:"PRIMECUT_LALAMOVE_API_SECRET"`
	WebhookSecret  string        `envconfig:"PRIMECUT_LALAMOVE_WEBHOOK_SECRET"`
	Market         string        `envconfig:"PRIMECUT_LALAMOVE_MARKET" default:"HK"`
	ServiceType    string        `envconfig:"PRIMECUT_LALAMOVE_SERVICE_TYPE" default:"MOTORCYCLE"`
	RequestTimeout time.Duration `envconfig:"PRIMECUT_LALAMOVE_REQUEST_TIMEOUT" default:"10s"`
	MaxAttempts    int           `envconfig:"PRIMECUT_LALAMOVE_MAX_ATTEMPTS" default:"3"`
}

// NotifyConfig routes operational alerts. AdminUserIDs receive the
// new-order notification persisted when a payment settles.
type NotifyConfig struct {
	AdminUserIDs []string `envconfig:"PRIMECUT_NOTIFY_ADMIN_USER_IDS"`
}

// StoreConfig is the butcher shop's physical origin, used as the pickup
// stop and sender contact when placing carrier deliveries.
type StoreConfig struct {
	Name         string `envconfig:"PRIMECUT_STORE_NAME" default:"Prime Cut Butchery"`
	Phone        string `envconfig:"PRIMECUT_STORE_PHONE"`
	AddressLine1 string `envconfig:"PRIMECUT_STORE_ADDRESS_LINE1"`
	City         string `envconfig:"PRIMECUT_STORE_CITY"`
	PostalCode   string `envconfig:"PRIMECUT_STORE_POSTAL_CODE"`
	Country      string `envconfig:"PRIMECUT_STORE_COUNTRY" default:"HK"`
	Lat          string `envconfig:"PRIMECUT_STORE_LAT"`
	Lng          string `envconfig:"PRIMECUT_STORE_LNG"`
}

type PricingConfig struct {
	TaxRate              decimal.Decimal `envconfig:"PRIMECUT_TAX_RATE" default:"0"`
	DeliveryFeeCents     int             `envconfig:"PRIMECUT_DELIVERY_FEE_CENTS" default:"500"`
	FreeDeliveryMinCents int             `envconfig:"PRIMECUT_FREE_DELIVERY_MIN_CENTS" default:"0"`
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
