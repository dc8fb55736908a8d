package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/klarna/sfcc-klarna-payments-sub001/internal/config"
	handler "github.com/klarna/sfcc-klarna-payments-sub001/internal/handler/http"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/repository/redis"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/service"
	"github.com/klarna/sfcc-klarna-payments-sub001/internal/signin"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/database"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/health"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/middleware"
)

// App wires together all dependencies and runs the payments HTTP service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	core       *Core
	redis      *goredis.Client
	httpServer *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	core, err := NewCore(ctx, cfg, ServiceName, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Redis for the payment session cache.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Host = cfg.RedisHost
	redisCfg.Port = cfg.RedisPort
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB
	redisClient, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))

	sessionStore := redis.NewSessionStore(redisClient, cfg.SessionTTL())

	// Build the dependency graph.
	sessions := service.NewSessionCoordinator(
		sessionStore,
		core.Caller,
		core.Builder,
		core.Catalogue,
		cfg.SessionTTL(),
		logger,
	)
	orders := service.NewOrderCoordinator(
		core.Orders,
		core.Profiles,
		sessionStore,
		core.Tx,
		core.Caller,
		core.Builder,
		core.Catalogue,
		core.Events,
		service.OrderConfig{
			AutoCapture:   cfg.AutoCapture,
			VCNEnabled:    cfg.VCNEnabled,
			VCNKeyID:      cfg.VCNKeyID,
			VCNRetryCount: cfg.VCNRetryCount,
		},
		logger,
	)
	keys := signin.NewKeyCache(core.Caller, logger, signin.WithKeyTTL(cfg.SignInKeyTTL()))
	signIn := signin.NewService(core.Caller, keys, core.Catalogue, logger)
	webhooks := service.NewWebhookService(core.Caller, core.Catalogue, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", core.PingPostgres)
	healthHandler.RegisterCritical("redis", sessionStore.Ping)
	healthHandler.RegisterNonCritical("kafka", core.PingKafka)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Sessions:  sessions,
		Orders:    orders,
		SignIn:    signIn,
		Webhooks:  webhooks,
		Recurring: core.RecurringEngine(),
	}, healthHandler, handler.RouterConfig{
		ServiceName:  ServiceName,
		APIKeys:      cfg.AdminAPIKeys,
		CORS:         cors,
		PprofEnabled: cfg.PprofEnabled,
		PprofCIDRs:   cfg.PprofAllowedCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPTimeoutSecs+15) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		core:       core,
		redis:      redisClient,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("provider", a.cfg.ProviderMode),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server first
// so in-flight requests drain, then Redis, then the shared core.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.core.Close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
