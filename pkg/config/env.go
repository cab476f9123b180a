package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "VENDEO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DefaultSQLiteDSN = "file:vendeo.db?cache=shared"
)

// Variables referenced by error messages and tests.
const (
	EnvAppEnv   = "VENDEO_APP_ENV"
	EnvPort     = "VENDEO_APP_PORT"
	EnvLogLevel = "VENDEO_LOG_LEVEL"

	EnvDBDSN  = "VENDEO_DB_DSN"
	EnvDBHost = "VENDEO_DB_HOST"
	EnvDBUser = "VENDEO_DB_USER"
	EnvDBName = "VENDEO_DB_NAME"

	EnvRedisURL  = "VENDEO_REDIS_URL"
	EnvUseSQLite = "VENDEO_USE_SQLITE"

	EnvCommissionDefaultRate = "VENDEO_COMMISSION_DEFAULT_RATE"
	EnvCronInterval          = "VENDEO_CRON_INTERVAL"
	EnvOutboxBatchSize       = "VENDEO_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxMaxAttempts     = "VENDEO_OUTBOX_MAX_ATTEMPTS"
)
