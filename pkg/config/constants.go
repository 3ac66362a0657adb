package config

// EnvPrefix is handed to envconfig; every field carries its full variable name anyway.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	PersistenceRedis  = "redis"
	PersistenceSQL    = "sql"
	PersistenceMemory = "memory"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	defaultSQLiteDSN = "file:storefront.db?_busy_timeout=5000"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvBackendBaseURL    = "STOREFRONT_BACKEND_BASE_URL"
	EnvBackendTimeout    = "STOREFRONT_BACKEND_TIMEOUT"
	EnvPersistenceDriver = "STOREFRONT_PERSISTENCE_DRIVER"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBDriver          = "STOREFRONT_DB_DRIVER"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
)

var requiredPostgresEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
