package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	Backend     BackendConfig
	Persistence PersistenceConfig
	Redis       RedisConfig
	DB          DBConfig
	JWT         JWTConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	Metrics     MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Persistence.validate(); err != nil {
		return nil, err
	}
	if cfg.Persistence.Driver == PersistenceSQL {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"20s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the remote REST backend that owns carts, products and orders.
type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"25s"`

	BreakerMaxFailures uint32        `envconfig:"STOREFRONT_BACKEND_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

func (b BackendConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

// PersistenceConfig selects where checkout session state lives.
type PersistenceConfig struct {
	Driver string        `envconfig:"STOREFRONT_PERSISTENCE_DRIVER" default:"redis"`
	TTL    time.Duration `envconfig:"STOREFRONT_PERSISTENCE_TTL" default:"168h"`

	PurgeInterval time.Duration `envconfig:"STOREFRONT_PERSISTENCE_PURGE_INTERVAL" default:"1h"`
}

func (p PersistenceConfig) validate() error {
	switch p.Driver {
	case PersistenceRedis, PersistenceSQL, PersistenceMemory:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvPersistenceDriver, PersistenceRedis, PersistenceSQL, PersistenceMemory)
	}
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN         string `envconfig:"STOREFRONT_DB_DSN"`
	Driver      string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	AutoMigrate bool   `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"true"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

// JWTConfig verifies the storefront's bearer credentials. An empty secret disables
// signature verification and only decodes the claims.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER"`
}

type CheckoutConfig struct {
	PlaceholderImage     string        `envconfig:"STOREFRONT_PLACEHOLDER_IMAGE" default:"/images/placeholder.png"`
	FanOutLimit          int           `envconfig:"STOREFRONT_RECONCILE_FANOUT" default:"8"`
	ConfirmationRedirect string        `envconfig:"STOREFRONT_CONFIRMATION_REDIRECT" default:"/orders"`
	RedirectAfter        time.Duration `envconfig:"STOREFRONT_CONFIRMATION_REDIRECT_AFTER" default:"5s"`
	ReturnURL            string        `envconfig:"STOREFRONT_PAYMENT_RETURN_URL" default:"/api/v1/checkout/return"`
	ConfirmationURL      string        `envconfig:"STOREFRONT_CONFIRMATION_URL" default:"/checkout/confirmation"`
	PaymentFailedURL     string        `envconfig:"STOREFRONT_PAYMENT_FAILED_URL" default:"/checkout/payment-failed"`
	CleanupTimeout       time.Duration `envconfig:"STOREFRONT_CLEANUP_TIMEOUT" default:"15s"`
}

// RateLimitConfig throttles coupon guessing. A zero window or zero limits disable it.
type RateLimitConfig struct {
	CouponWindow        time.Duration `envconfig:"STOREFRONT_COUPON_RATE_WINDOW" default:"10m"`
	CouponCustomerLimit int           `envconfig:"STOREFRONT_COUPON_RATE_CUSTOMER_LIMIT" default:"20"`
	CouponIPLimit       int           `envconfig:"STOREFRONT_COUPON_RATE_IP_LIMIT" default:"60"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredPostgresEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
