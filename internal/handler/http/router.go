package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/health"
	"github.com/klarna/sfcc-klarna-payments-sub001/pkg/middleware"
)

// Services bundles what the router dispatches to.
type Services struct {
	Sessions  SessionService
	Orders    OrderService
	SignIn    SignInService
	Webhooks  WebhookService
	Recurring RecurringRunner
}

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	ServiceName  string
	APIKeys      []string
	CORS         middleware.CORSConfig
	PprofEnabled bool
	PprofCIDRs   []string
}

// NewRouter creates a chi router with all payment routes registered.
//
// Storefront routes (sessions, sign-in) are open to the browser through CORS.
// Order management and admin routes require a merchant API key. The fraud
// webhook is open so the provider can reach it.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "klarna-payments"
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	sessionHandler := NewSessionHandler(svcs.Sessions, logger)
	orderHandler := NewOrderHandler(svcs.Orders, logger)
	signInHandler := NewSignInHandler(svcs.SignIn, logger)
	adminHandler := NewAdminHandler(svcs.Webhooks, svcs.Recurring, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Route("/sessions/{shopperKey}", func(r chi.Router) {
			r.Use(middleware.CORS(cfg.CORS))
			r.Use(middleware.RequestLogger(logger))

			r.Put("/", sessionHandler.PutSession)
			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.DeleteSession)
			r.Post("/authorization", sessionHandler.StoreAuthorization)
			r.Delete("/authorization", sessionHandler.CancelAuthorization)
		})

		r.Route("/signin", func(r chi.Router) {
			r.Use(middleware.CORS(cfg.CORS))

			r.Post("/verify", signInHandler.Verify)
			r.Post("/refresh", signInHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(cfg.APIKeys))

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RequestLogger(logger)).Post("/", orderHandler.PlaceOrder)

				r.Route("/{orderNo}", func(r chi.Router) {
					r.Use(middleware.RequestLogger(logger))

					r.Get("/", orderHandler.GetOrder)
					r.Post("/refresh", orderHandler.RefreshOrder)
					r.Post("/capture", orderHandler.Capture)
					r.Post("/cancel", orderHandler.Cancel)
					r.Post("/settlement/clear", orderHandler.ClearSettlement)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequestLogger(logger))

				r.Post("/webhooks", adminHandler.RegisterWebhook)
				r.Delete("/webhooks/{webhookID}", adminHandler.DeleteWebhook)
				r.Post("/recurring/run", adminHandler.RunRecurring)
			})
		})
	})

	// The provider's content type is not enforced here; the handler answers
	// 200 to anything it receives.
	r.With(middleware.RequestLogger(logger)).
		Post("/webhooks/klarna/fraud", orderHandler.FraudNotification)

	return r
}
