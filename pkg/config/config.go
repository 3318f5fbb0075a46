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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Reports      ReportsConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Reports.validate(); err != nil {
		return nil, err
	}
	if cfg.Reports.Source == ReportSourceBigQuery && strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvReportsSource, ReportSourceBigQuery)
	}
	if cfg.Reports.CacheDriver == CacheDriverRedis && cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return nil, fmt.Errorf("either %s or %s is required when %s=%s", EnvRedisURL, EnvRedisAddr, EnvReportsCacheDriver, CacheDriverRedis)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MARKETREPORTS_APP_ENV" required:"true"`
	Port         string   `envconfig:"MARKETREPORTS_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MARKETREPORTS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MARKETREPORTS_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"MARKETREPORTS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETREPORTS_DB_DSN"`
	Driver string `envconfig:"MARKETREPORTS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETREPORTS_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETREPORTS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETREPORTS_DB_USER"`
	LegacyPassword string `envconfig:"MARKETREPORTS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETREPORTS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETREPORTS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETREPORTS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETREPORTS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETREPORTS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETREPORTS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETREPORTS_REDIS_URL"`
	Address      string        `envconfig:"MARKETREPORTS_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETREPORTS_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETREPORTS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETREPORTS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETREPORTS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETREPORTS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETREPORTS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETREPORTS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETREPORTS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETREPORTS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETREPORTS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MARKETREPORTS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MARKETREPORTS_AUTO_MIGRATE" default:"false"`
}

// ReportsConfig tunes the aggregation, cache and export pipeline.
type ReportsConfig struct {
	CacheTTL        time.Duration `envconfig:"MARKETREPORTS_REPORTS_CACHE_TTL" default:"1h"`
	CacheDriver     string        `envconfig:"MARKETREPORTS_REPORTS_CACHE_DRIVER" default:"memory"`
	Source          string        `envconfig:"MARKETREPORTS_REPORTS_SOURCE" default:"sql"`
	FunnelEventIDs  []int64       `envconfig:"MARKETREPORTS_REPORTS_FUNNEL_EVENT_IDS" default:"2,3,7,623,8"`
	ExportFlushRows int           `envconfig:"MARKETREPORTS_REPORTS_EXPORT_FLUSH_ROWS" default:"500"`
	ExportRateLimit int           `envconfig:"MARKETREPORTS_REPORTS_EXPORT_RATE_LIMIT" default:"10"`

	CacheBreakerFailures uint32        `envconfig:"MARKETREPORTS_REPORTS_CACHE_BREAKER_FAILURES" default:"5"`
	CacheBreakerCooldown time.Duration `envconfig:"MARKETREPORTS_REPORTS_CACHE_BREAKER_COOLDOWN" default:"30s"`
}

func (r ReportsConfig) validate() error {
	if r.CacheTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvReportsCacheTTL)
	}
	switch r.CacheDriver {
	case CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("%s must be one of %s|%s, got %q", EnvReportsCacheDriver, CacheDriverMemory, CacheDriverRedis, r.CacheDriver)
	}
	switch r.Source {
	case ReportSourceSQL, ReportSourceBigQuery:
	default:
		return fmt.Errorf("%s must be one of %s|%s, got %q", EnvReportsSource, ReportSourceSQL, ReportSourceBigQuery, r.Source)
	}
	if len(r.FunnelEventIDs) == 0 {
		return fmt.Errorf("%s requires at least one event id", EnvReportsFunnelEventIDs)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETREPORTS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETREPORTS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETREPORTS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"MARKETREPORTS_BIGQUERY_DATASET" default:"market_reports"`
	BookingsTable   string `envconfig:"MARKETREPORTS_BIGQUERY_BOOKINGS_TABLE" default:"service_titan_jobs"`
	EventsTable     string `envconfig:"MARKETREPORTS_BIGQUERY_EVENTS_TABLE" default:"log_events"`
	MarketsTable    string `envconfig:"MARKETREPORTS_BIGQUERY_MARKETS_TABLE" default:"markets"`
	EventNamesTable string `envconfig:"MARKETREPORTS_BIGQUERY_EVENT_NAMES_TABLE" default:"event_names"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
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
