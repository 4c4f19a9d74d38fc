// Package api provides the HTTP API for ChargeWatch.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/activity"
	"github.com/chargewatch/chargewatch/internal/api/handler"
	"github.com/chargewatch/chargewatch/internal/api/middleware"
	"github.com/chargewatch/chargewatch/internal/api/response"
	"github.com/chargewatch/chargewatch/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Activities  *activity.Registry
	Providers   *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "chargewatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.ContentTypeJSON)      // JSON content type default

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Activities, cfg.Providers)
	activityHandler := handler.NewActivityHandler(cfg.Activities)

	// Create rate limit middleware for different endpoint categories
	registrationRateLimit := middleware.RateLimitByIP(middleware.RegistrationRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)         // 100 req/min

	// Bare probes for load balancers and uptime checks
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		response.Text(w, r, http.StatusOK, "pong")
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.Text(w, r, http.StatusOK, "ok")
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Live-activity session endpoints
		r.Route("/live-activities", func(r chi.Router) {
			r.With(registrationRateLimit, middleware.RequireJSON).Post("/register", activityHandler.Register)
			r.With(standardRateLimit, middleware.RequireJSON).Post("/dismiss", activityHandler.Dismiss)
			r.With(standardRateLimit).Get("/count", activityHandler.Count)
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}
