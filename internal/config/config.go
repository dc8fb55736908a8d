package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	pkgconfig "github.com/klarna/sfcc-klarna-payments-sub001/pkg/config"
)

// Provider modes.
const (
	ProviderLive = "live"
	ProviderMock = "mock"
)

// Config holds all configuration for the payments service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"KLARNA_HTTP_PORT" envDefault:"8010"`

	// API keys accepted on order management and admin routes.
	AdminAPIKeys []string `env:"ADMIN_API_KEYS" envSeparator:","`

	// Storefront origins allowed to call the session and sign-in routes.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"KLARNA_DB_NAME" envDefault:"klarna_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Provider
	ProviderMode      string  `env:"KLARNA_PROVIDER" envDefault:"live"`
	LocalesFile       string  `env:"KLARNA_LOCALES_FILE" envDefault:"config/locales.yaml"`
	UserAgent         string  `env:"KLARNA_USER_AGENT" envDefault:"KlarnaPayments/26.1.0"`
	HTTPTimeoutSecs   int     `env:"KLARNA_HTTP_TIMEOUT_SECONDS" envDefault:"30"`
	RateLimitRPS      float64 `env:"KLARNA_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst    int     `env:"KLARNA_RATE_LIMIT_BURST" envDefault:"5"`
	SessionTTLHours   int     `env:"KLARNA_SESSION_TTL_HOURS" envDefault:"48"`
	AutoCapture       bool    `env:"KLARNA_AUTO_CAPTURE" envDefault:"false"`
	VCNEnabled        bool    `env:"KLARNA_VCN_ENABLED" envDefault:"false"`
	VCNKeyID          string  `env:"KLARNA_VCN_KEY_ID"`
	VCNRetryCount     int     `env:"KLARNA_VCN_RETRY_COUNT" envDefault:"1"`
	MirrorOrderLines  bool    `env:"KLARNA_MIRROR_ORDER_LINES" envDefault:"false"`
	SignInKeyTTLMins  int     `env:"KLARNA_SIGNIN_KEY_TTL_MINUTES" envDefault:"10"`

	// Merchant URLs; "{orderNo}" is replaced with the local order number.
	ConfirmationURL  string `env:"KLARNA_CONFIRMATION_URL" envDefault:"http://localhost:3000/checkout/confirmation/{orderNo}"`
	NotificationURL  string `env:"KLARNA_NOTIFICATION_URL" envDefault:"http://localhost:8010/webhooks/klarna/fraud"`
	PushURL          string `env:"KLARNA_PUSH_URL"`
	AuthorizationURL string `env:"KLARNA_AUTHORIZATION_URL"`

	// Recurring charges
	RecurringRetryEnabled       bool   `env:"RECURRING_RETRY_ENABLED" envDefault:"true"`
	RecurringMaxRetries         int    `env:"RECURRING_MAX_RETRIES" envDefault:"3"`
	RecurringRetryFrequencyDays int    `env:"RECURRING_RETRY_FREQUENCY_DAYS" envDefault:"1"`
	RecurringCron               string `env:"RECURRING_CRON" envDefault:"0 3 * * *"`

	// Temporal
	TemporalAddress   string `env:"TEMPORAL_ADDRESS" envDefault:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" envDefault:"default"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"klarna-recurring"`

	// Circuit breaker settings for provider calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load klarna config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return errors.New("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return errors.New("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.ProviderMode != ProviderLive && c.ProviderMode != ProviderMock {
		return fmt.Errorf("KLARNA_PROVIDER must be %q or %q, got %q", ProviderLive, ProviderMock, c.ProviderMode)
	}
	if c.LocalesFile == "" {
		return errors.New("KLARNA_LOCALES_FILE is required")
	}
	if c.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("KLARNA_HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSecs)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("KLARNA_RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	if c.SignInKeyTTLMins <= 0 {
		return fmt.Errorf("KLARNA_SIGNIN_KEY_TTL_MINUTES must be positive, got %d", c.SignInKeyTTLMins)
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("KLARNA_SESSION_TTL_HOURS must be positive, got %d", c.SessionTTLHours)
	}
	if c.VCNEnabled && c.VCNKeyID == "" {
		return errors.New("KLARNA_VCN_KEY_ID is required when VCN is enabled")
	}
	if c.VCNRetryCount < 0 {
		return fmt.Errorf("KLARNA_VCN_RETRY_COUNT must not be negative, got %d", c.VCNRetryCount)
	}
	if c.RecurringMaxRetries < 0 {
		return fmt.Errorf("RECURRING_MAX_RETRIES must not be negative, got %d", c.RecurringMaxRetries)
	}
	if c.RecurringRetryFrequencyDays < 1 {
		return fmt.Errorf("RECURRING_RETRY_FREQUENCY_DAYS must be at least 1, got %d", c.RecurringRetryFrequencyDays)
	}
	if len(strings.Fields(c.RecurringCron)) != 5 {
		return fmt.Errorf("RECURRING_CRON must have five fields, got %q", c.RecurringCron)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, rawURL := range map[string]string{
		"KLARNA_CONFIRMATION_URL":  c.ConfirmationURL,
		"KLARNA_NOTIFICATION_URL":  c.NotificationURL,
		"KLARNA_PUSH_URL":          c.PushURL,
		"KLARNA_AUTHORIZATION_URL": c.AuthorizationURL,
	} {
		if rawURL == "" {
			continue
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// SessionTTL is the lifetime of a cached payment session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// SignInKeyTTL is how long fetched sign-in signing keys are trusted.
func (c *Config) SignInKeyTTL() time.Duration {
	return time.Duration(c.SignInKeyTTLMins) * time.Minute
}

// MerchantURLs returns the configured merchant callback URLs.
func (c *Config) MerchantURLs() provider.MerchantURLs {
	return provider.MerchantURLs{
		Confirmation:  c.ConfirmationURL,
		Notification:  c.NotificationURL,
		Push:          c.PushURL,
		Authorization: c.AuthorizationURL,
	}
}

// LoadCatalogue reads the locale catalogue from path, applies password
// overrides from the environment and validates it.
func LoadCatalogue(path string) (*provider.LocaleCatalogue, error) {
	var cat provider.LocaleCatalogue
	if err := pkgconfig.LoadYAML(path, &cat); err != nil {
		return nil, fmt.Errorf("load locale catalogue: %w", err)
	}
	cat.Normalize()
	cat.ApplyPasswordOverrides(os.LookupEnv)
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("validate locale catalogue: %w", err)
	}
	return &cat, nil
}
