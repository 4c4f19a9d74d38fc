// Package main provides the entrypoint for the ChargeWatch API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/activity"
	"github.com/chargewatch/chargewatch/internal/api"
	"github.com/chargewatch/chargewatch/internal/api/middleware"
	"github.com/chargewatch/chargewatch/internal/events"
	"github.com/chargewatch/chargewatch/internal/provider/resilience"
	"github.com/chargewatch/chargewatch/internal/push/apns"
	"github.com/chargewatch/chargewatch/internal/telemetry"
	"github.com/chargewatch/chargewatch/internal/vehicle/porsche"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "chargewatch-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting ChargeWatch API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Provider registry backs the ops status endpoint
	providers := resilience.NewRegistry()

	// Initialize the Porsche telemetry client
	porscheClient := porsche.NewClient(porsche.ClientConfig{
		BaseURL: os.Getenv("PORSCHE_API_BASE_URL"),
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:            porsche.ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        providers,
		}),
		Metrics: providerMetrics,
		Logger:  log,
	})
	log.Info().Msg("porsche client initialized")

	// Initialize the APNS dispatcher
	keyFile := os.Getenv("APNS_KEY_FILE")
	p8, err := os.ReadFile(keyFile)
	if err != nil {
		log.Fatal().Err(err).Str("key_file", keyFile).Msg("failed to read APNS signing key")
	}
	token, err := apns.NewProviderToken(p8, os.Getenv("APNS_KEY_ID"), os.Getenv("APNS_TEAM_ID"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse APNS signing key")
	}

	apnsEnv := apns.Environment(os.Getenv("APNS_ENVIRONMENT"))
	if apnsEnv == "" {
		apnsEnv = apns.EnvironmentSandbox
	}
	appID := os.Getenv("APNS_APP_ID")
	if appID == "" {
		appID = "com.featherless.apps.electricsidecar"
	}

	dispatcher := apns.NewClient(apns.ClientConfig{
		AppID:       appID,
		Environment: apnsEnv,
		Token:       token,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:            apns.ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Registry:        providers,
		}),
		Logger: log,
	})
	log.Info().
		Str("environment", string(apnsEnv)).
		Str("app_id", appID).
		Msg("apns dispatcher initialized")

	// Lifecycle event publisher (optional)
	var publisher *events.Publisher
	if projectID := os.Getenv("PUBSUB_PROJECT_ID"); projectID != "" {
		topic := os.Getenv("PUBSUB_TOPIC")
		if topic == "" {
			topic = "activity-lifecycle"
		}
		publisher, err = events.NewPublisher(ctx, events.PublisherConfig{
			ProjectID: projectID,
			TopicName: topic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub publisher")
		}
		defer publisher.Close()
		log.Info().Str("topic", topic).Msg("lifecycle event publisher initialized")
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - lifecycle events disabled")
	}

	// Session registry
	registry := activity.NewRegistry(activity.RegistryConfig{
		Orchestrator: activity.NewOrchestrator(activity.OrchestratorConfig{
			Source:     porscheClient,
			Dispatcher: dispatcher,
			Metrics:    providerMetrics,
			Logger:     log,
		}),
		Events: publisher,
		Logger: log,
	})
	log.Info().Msg("session registry initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Activities:  registry,
		Providers:   providers,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Stop session timers and send end events where possible
	registry.Shutdown(shutdownCtx)

	log.Info().Msg("server stopped")
}
