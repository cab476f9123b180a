package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Commission   CommissionConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	err := c.DB.resolveDSN(c.FeatureFlags.UseSQLite)
	if _, rateErr := c.Commission.DefaultRate(); rateErr != nil {
		err = multierr.Append(err, rateErr)
	}
	if c.Outbox.BatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvOutboxBatchSize))
	}
	if c.Outbox.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvOutboxMaxAttempts))
	}
	return err
}

type AppConfig struct {
	Env            string   `envconfig:"VENDEO_APP_ENV" required:"true"`
	Port           string   `envconfig:"VENDEO_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"VENDEO_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"VENDEO_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"VENDEO_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// MetricsAddr is where the worker binaries expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"VENDEO_METRICS_ADDR" default:":9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VENDEO_SERVICE_KIND" default:"api"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDEO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDEO_REDIS_ADDR"`
	Password     string        `envconfig:"VENDEO_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDEO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDEO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDEO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDEO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDEO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDEO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDEO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDEO_AUTO_MIGRATE" default:"false"`
}

// CommissionConfig holds the MLM program knobs that are not part of the rule table.
type CommissionConfig struct {
	DefaultDistributorRate string        `envconfig:"VENDEO_COMMISSION_DEFAULT_RATE" default:"0"`
	IdempotencyTTL         time.Duration `envconfig:"VENDEO_COMMISSION_IDEMPOTENCY_TTL" default:"168h"`
}

// DefaultRate parses the configured default distributor rate (percent).
func (c CommissionConfig) DefaultRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.DefaultDistributorRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvCommissionDefaultRate, raw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", EnvCommissionDefaultRate)
	}
	return rate, nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VENDEO_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"VENDEO_CRON_LOCK_TTL" default:"25h"`
}

// GCPConfig is only required by the event publisher and the analytics worker.
type GCPConfig struct {
	ProjectID              string `envconfig:"VENDEO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VENDEO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VENDEO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CommissionTopic                  string `envconfig:"VENDEO_PUBSUB_COMMISSION_TOPIC" default:"vd-commission-events"`
	DistributorTopic                 string `envconfig:"VENDEO_PUBSUB_DISTRIBUTOR_TOPIC" default:"vd-distributor-events"`
	CommissionAnalyticsSubscription  string `envconfig:"VENDEO_PUBSUB_COMMISSION_ANALYTICS_SUBSCRIPTION" default:"vd-commission-analytics"`
	DistributorAnalyticsSubscription string `envconfig:"VENDEO_PUBSUB_DISTRIBUTOR_ANALYTICS_SUBSCRIPTION" default:"vd-distributor-analytics"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"VENDEO_BIGQUERY_DATASET" default:"vendeo"`
	CommissionEventsTable  string `envconfig:"VENDEO_BIGQUERY_COMMISSION_TABLE" default:"commission_events"`
	DistributorEventsTable string `envconfig:"VENDEO_BIGQUERY_DISTRIBUTOR_TABLE" default:"distributor_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDEO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDEO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDEO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"VENDEO_OUTBOX_RETENTION_DAYS" default:"30"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VENDEO_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}
