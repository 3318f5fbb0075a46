package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "MARKETREPORTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"

	ReportSourceSQL      = "sql"
	ReportSourceBigQuery = "bigquery"

	defaultSQLiteDSN = "file:marketreports.db?cache=shared"
)

const (
	EnvAppEnv = "MARKETREPORTS_APP_ENV"
	EnvPort   = "MARKETREPORTS_APP_PORT"

	EnvDBDSN  = "MARKETREPORTS_DB_DSN"
	EnvDBHost = "MARKETREPORTS_DB_HOST"
	EnvDBUser = "MARKETREPORTS_DB_USER"
	EnvDBName = "MARKETREPORTS_DB_NAME"

	EnvRedisURL  = "MARKETREPORTS_REDIS_URL"
	EnvRedisAddr = "MARKETREPORTS_REDIS_ADDR"

	EnvJWTSecret = "MARKETREPORTS_JWT_SECRET"
	EnvJWTIssuer = "MARKETREPORTS_JWT_ISSUER"

	EnvUseSQLite = "MARKETREPORTS_USE_SQLITE"

	EnvReportsCacheTTL       = "MARKETREPORTS_REPORTS_CACHE_TTL"
	EnvReportsCacheDriver    = "MARKETREPORTS_REPORTS_CACHE_DRIVER"
	EnvReportsSource         = "MARKETREPORTS_REPORTS_SOURCE"
	EnvReportsFunnelEventIDs = "MARKETREPORTS_REPORTS_FUNNEL_EVENT_IDS"

	EnvGCPProjectID = "MARKETREPORTS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
