// Package api provides the HTTP API for GreenGuard.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenguard/greenguard/internal/api/handler"
	"github.com/greenguard/greenguard/internal/api/middleware"
	"github.com/greenguard/greenguard/internal/api/response"
	"github.com/greenguard/greenguard/internal/featureflags"
	"github.com/greenguard/greenguard/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics
	Tracer    trace.TracerProvider // optional; defaults to the global provider

	AllowedOrigins []string
	RequireTLS     bool

	Conditions handler.ConditionsService
	Historical handler.HistoricalService
	Predictor  handler.Predictor // optional
	Streams    RealtimeStreams   // optional; nil disables the websocket route

	FeatureFlagService *featureflags.Service
	Registry           *resilience.Registry
	Caches             []handler.CacheSize
	Warmer             handler.WarmerStatus // optional
}

// RealtimeStreams is the session hub behind the streaming endpoint.
type RealtimeStreams interface {
	handler.StreamServer
	handler.StreamCounter
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)           // Generate/propagate request ID first
	r.Use(middleware.Tracing(cfg.Tracer)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Caches:    cfg.Caches,
		Streams:   streamCounter(cfg.Streams),
		Warmer:    cfg.Warmer,
		Flags:     flagReader(cfg.FeatureFlagService),
	})
	aqiHandler := handler.NewAQIHandler(handler.AQIHandlerConfig{
		Conditions: cfg.Conditions,
		Historical: cfg.Historical,
		Predictor:  cfg.Predictor,
		Logger:     cfg.Logger,
	})

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	streamRateLimit := middleware.RateLimitByIP(middleware.StreamRateLimit)       // 10 req/min

	// Public endpoints
	r.With(middleware.ContentTypeJSON).Get("/", opsHandler.Index)
	r.With(middleware.ContentTypeJSON).Get("/health", opsHandler.HealthCheck)

	// Ops endpoints
	r.Route("/ops", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(standardRateLimit)
		r.Get("/status", opsHandler.SystemStatus)
	})

	// Air quality endpoints
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.With(standardRateLimit).Get("/current-aqi", aqiHandler.CurrentAQI)
		r.With(standardRateLimit).Get("/historical", aqiHandler.Historical)
		r.With(expensiveRateLimit).Get("/forecast", aqiHandler.Forecast)
		r.With(expensiveRateLimit).Get("/predict", aqiHandler.Predict)

		if cfg.FeatureFlagService != nil {
			featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)
			r.With(standardRateLimit).Get("/feature-flags", featureFlagsHandler.ListFeatureFlags)
		}
	})

	// Realtime streaming
	if cfg.Streams != nil {
		realtimeHandler := handler.NewRealtimeHandler(cfg.Streams, cfg.AllowedOrigins, cfg.Logger)
		r.With(streamRateLimit).Get("/ws/realtime-monitoring", realtimeHandler.Monitor)
	}

	return r
}

// streamCounter avoids wrapping a nil hub in a non-nil interface.
func streamCounter(s RealtimeStreams) handler.StreamCounter {
	if s == nil {
		return nil
	}
	return s
}

func flagReader(s *featureflags.Service) handler.FlagReader {
	if s == nil {
		return nil
	}
	return s
}
