package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/builder"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/config"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/domain"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/event"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/provider/mock"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/repository/postgres"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
	"github.com/klarna/sfcc-klarna-payments-sub001/migrations"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/database"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/httpclient"
	pkgkafka "github.com/klarna/sfcc-klarna-payments-sub001/pkg/kafka"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/tracing"
)

// ServiceName labels metrics, traces and events of this service.
const ServiceName = "klarna-payments"

// Core holds the dependencies shared by the HTTP server and the recurring
// charge runner: storage, events, the provider caller and the locale
// catalogue.
type Core struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error

	Catalogue *provider.LocaleCatalogue
	Caller    provider.Caller
	Builder   *builder.Builder
	Events    *event.Producer
	Orders    *postgres.OrderRepository
	Profiles  *postgres.ProfileRepository
	Tx        *database.TxManager
}

// NewCore connects to PostgreSQL and Kafka, applies migrations and builds
// the provider caller. component names the process in traces.
func NewCore(ctx context.Context, cfg *config.Config, component string, logger *slog.Logger) (*Core, error) {
	catalogue, err := config.LoadCatalogue(cfg.LocalesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("locale catalogue loaded", slog.String("path", cfg.LocalesFile))

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    component,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, component)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = tracerShutdown(context.Background())
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	return &Core{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		tracerShutdown: tracerShutdown,
		Catalogue:      catalogue,
		Caller:         newCaller(cfg, catalogue, logger),
		Builder: builder.New(builder.Config{
			MerchantURLs: cfg.MerchantURLs(),
			MirrorLines:  cfg.MirrorOrderLines,
		}),
		Events:   event.NewProducer(producer, logger),
		Orders:   postgres.NewOrderRepository(pool),
		Profiles: postgres.NewProfileRepository(pool),
		Tx:       database.NewTxManager(pool),
	}, nil
}

// newCaller returns the in-memory provider for KLARNA_PROVIDER=mock and the
// live client behind a circuit breaker otherwise.
func newCaller(cfg *config.Config, catalogue *provider.LocaleCatalogue, logger *slog.Logger) provider.Caller {
	if cfg.ProviderMode == config.ProviderMock {
		logger.Warn("using the mock payment provider")
		return mock.New()
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = time.Duration(cfg.HTTPTimeoutSecs) * time.Second
	httpCfg.IdempotencyHeader = provider.IdempotencyHeader
	baseClient := httpclient.New(httpCfg)

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "klarna-api",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)

	return provider.NewClient(cbClient, catalogue, provider.ClientConfig{
		UserAgent: cfg.UserAgent,
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	}, logger)
}

// RecurringEngine builds the recurring charge engine from the core.
func (c *Core) RecurringEngine() *service.RecurringEngine {
	return service.NewRecurringEngine(
		c.Profiles,
		c.Orders,
		c.Tx,
		c.Caller,
		c.Builder,
		c.Catalogue,
		c.Events,
		domain.RetryPolicy{
			Enabled:       c.cfg.RecurringRetryEnabled,
			MaxRetries:    c.cfg.RecurringMaxRetries,
			FrequencyDays: c.cfg.RecurringRetryFrequencyDays,
		},
		c.logger,
	)
}

// PingPostgres checks the database connection.
func (c *Core) PingPostgres(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// PingKafka checks that a broker is reachable.
func (c *Core) PingKafka(ctx context.Context) error {
	return c.producer.Ping(ctx)
}

// Close flushes pending spans, then closes the Kafka producer and the
// PostgreSQL pool.
func (c *Core) Close() error {
	var errs []error

	if c.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := c.tracerShutdown(tracerCtx); err != nil {
			c.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := c.producer.Close(); err != nil {
		c.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	c.pool.Close()
	return errors.Join(errs...)
}
