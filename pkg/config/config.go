package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CIRCUITSTOCK"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "CIRCUITSTOCK_APP_ENV"
	EnvDBDSN  = "CIRCUITSTOCK_DB_DSN"
	EnvDBHost = "CIRCUITSTOCK_DB_HOST"
	EnvDBUser = "CIRCUITSTOCK_DB_USER"
	EnvDBName = "CIRCUITSTOCK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Mouser       MouserConfig
	Sync         SyncConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"CIRCUITSTOCK_APP_ENV" required:"true"`
	Port         string `envconfig:"CIRCUITSTOCK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CIRCUITSTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CIRCUITSTOCK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CIRCUITSTOCK_DB_DSN"`

	LegacyHost     string `envconfig:"CIRCUITSTOCK_DB_HOST"`
	LegacyPort     int    `envconfig:"CIRCUITSTOCK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CIRCUITSTOCK_DB_USER"`
	LegacyPassword string `envconfig:"CIRCUITSTOCK_DB_PASSWORD"`
	LegacyName     string `envconfig:"CIRCUITSTOCK_DB_NAME"`
	LegacySSLMode  string `envconfig:"CIRCUITSTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CIRCUITSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CIRCUITSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CIRCUITSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CIRCUITSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CIRCUITSTOCK_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CIRCUITSTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CIRCUITSTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CIRCUITSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CIRCUITSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CIRCUITSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CIRCUITSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CIRCUITSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CIRCUITSTOCK_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	JobsTopic        string `envconfig:"CIRCUITSTOCK_PUBSUB_JOBS_TOPIC" required:"true"`
	JobsSubscription string `envconfig:"CIRCUITSTOCK_PUBSUB_JOBS_SUBSCRIPTION" required:"true"`
}

type MouserConfig struct {
	APIKey  string        `envconfig:"CIRCUITSTOCK_MOUSER_API_KEY"`
	BaseURL string        `envconfig:"CIRCUITSTOCK_MOUSER_BASE_URL" default:"https://api.mouser.com"`
	Timeout time.Duration `envconfig:"CIRCUITSTOCK_MOUSER_TIMEOUT" default:"15s"`
}

type SyncConfig struct {
	FetchTimeout time.Duration `envconfig:"CIRCUITSTOCK_SYNC_FETCH_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CIRCUITSTOCK_AUTO_MIGRATE" default:"false"`
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
