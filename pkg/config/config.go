package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Paystack PaystackConfig
	Billing  BillingConfig
	Sweep    SweepConfig
	Flags    FeatureFlagsConfig
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
	Env          string `envconfig:"LEARNHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNHUB_APP_PORT" required:"true"`
	SiteBaseURL  string `envconfig:"LEARNHUB_SITE_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"LEARNHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LEARNHUB_DB_DSN"`
	Driver string `envconfig:"LEARNHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEARNHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"LEARNHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEARNHUB_DB_USER"`
	LegacyPassword string `envconfig:"LEARNHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEARNHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEARNHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEARNHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either LEARNHUB_DB_DSN or LEARNHUB_DB_HOST/USER/NAME must be set")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.LegacyUser),
		url.QueryEscape(d.LegacyPassword),
		d.LegacyHost,
		d.LegacyPort,
		d.LegacyName,
		d.LegacySSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEARNHUB_REDIS_ADDR"`
	Password     string        `envconfig:"LEARNHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaystackConfig struct {
	SecretKey      string        `envconfig:"LEARNHUB_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL        string        `envconfig:"LEARNHUB_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL    string        `envconfig:"LEARNHUB_PAYSTACK_CALLBACK_URL"`
	RequestTimeout time.Duration `envconfig:"LEARNHUB_PAYSTACK_REQUEST_TIMEOUT" default:"10s"`

	VerifyMaxAttempts int           `envconfig:"LEARNHUB_PAYSTACK_VERIFY_MAX_ATTEMPTS" default:"3"`
	VerifyBaseDelay   time.Duration `envconfig:"LEARNHUB_PAYSTACK_VERIFY_BASE_DELAY" default:"1s"`
	VerifyMaxWait     time.Duration `envconfig:"LEARNHUB_PAYSTACK_VERIFY_MAX_WAIT" default:"7s"`

	WebhookIdempotencyTTL time.Duration `envconfig:"LEARNHUB_PAYSTACK_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type BillingConfig struct {
	CycleDays   int           `envconfig:"LEARNHUB_BILLING_CYCLE_DAYS" default:"30"`
	GraceWindow time.Duration `envconfig:"LEARNHUB_BILLING_GRACE_WINDOW" default:"72h"`
	Currency    string        `envconfig:"LEARNHUB_BILLING_CURRENCY" default:"NGN"`
}

// Cycle returns the billing cycle as a duration.
func (b BillingConfig) Cycle() time.Duration {
	days := b.CycleDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

type SweepConfig struct {
	Interval time.Duration `envconfig:"LEARNHUB_SWEEP_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LEARNHUB_SWEEP_LOCK_TTL" default:"55m"`
	Limit    int           `envconfig:"LEARNHUB_SWEEP_BATCH_LIMIT" default:"500"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEARNHUB_AUTO_MIGRATE" default:"false"`
}
