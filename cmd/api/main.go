// Package main provides the entrypoint for the GreenGuard API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/airquality"
	"github.com/greenguard/greenguard/internal/airquality/openmeteo"
	"github.com/greenguard/greenguard/internal/api"
	"github.com/greenguard/greenguard/internal/api/handler"
	"github.com/greenguard/greenguard/internal/api/middleware"
	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/cache"
	"github.com/greenguard/greenguard/internal/conditions"
	"github.com/greenguard/greenguard/internal/config"
	"github.com/greenguard/greenguard/internal/database"
	"github.com/greenguard/greenguard/internal/featureflags"
	"github.com/greenguard/greenguard/internal/historical"
	"github.com/greenguard/greenguard/internal/predict"
	"github.com/greenguard/greenguard/internal/provider/resilience"
	"github.com/greenguard/greenguard/internal/realtime"
	"github.com/greenguard/greenguard/internal/telemetry"
	"github.com/greenguard/greenguard/internal/weather"
	"github.com/greenguard/greenguard/internal/weather/openweathermap"
	"github.com/greenguard/greenguard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "greenguard-api"

	cfg, err := config.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, lerr := zerolog.ParseLevel(cfg.LogLevel); lerr == nil {
		log = log.Level(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		log = log.Level(zerolog.InfoLevel)
	}
	for _, w := range cfg.Validate() {
		log.Warn().Msg(w)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting GreenGuard API")

	ctx := context.Background()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
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

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http metrics")
	}
	cacheMetrics, err := cache.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache metrics")
	}

	// Feature flags: Postgres when configured, in-memory defaults otherwise
	var flagRepo featureflags.Repository
	if pool := connect(ctx, log, "feature flags", cfg.DatabaseURL); pool != nil {
		defer pool.Close()
		flagRepo = featureflags.NewPostgresRepository(pool)
	} else {
		flagRepo = featureflags.NewInMemoryRepository()
	}
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Upstream providers
	registry := resilience.NewRegistry()

	aqCache, err := cache.New[airquality.Reading](cache.Config{
		Name:       airquality.CacheName,
		TTL:        cfg.AirQualityTTL,
		MaxEntries: cfg.CacheMaxEntries,
		Precision:  cfg.CachePrecision,
		Metrics:    cacheMetrics,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create air quality cache")
	}
	aqService, err := airquality.NewService(airquality.ServiceConfig{
		Fetcher: openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:  cfg.OpenMeteoAirQualityURL,
			Timeout:  cfg.AirQualityTimeout,
			Registry: registry,
		}),
		Cache:   aqCache,
		Metrics: cacheMetrics,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create air quality service")
	}

	wxCache, err := cache.New[weather.Reading](cache.Config{
		Name:       weather.CacheName,
		TTL:        cfg.WeatherTTL,
		MaxEntries: cfg.CacheMaxEntries,
		Precision:  cfg.CachePrecision,
		Metrics:    cacheMetrics,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create weather cache")
	}
	var wxFetcher weather.Fetcher
	if cfg.OpenWeatherAPIKey != "" {
		wxFetcher = openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   cfg.OpenWeatherAPIKey,
			BaseURL:  cfg.OpenWeatherBaseURL,
			Timeout:  cfg.WeatherTimeout,
			Registry: registry,
		})
	}
	wxService, err := weather.NewService(weather.ServiceConfig{
		Fetcher: wxFetcher,
		Cache:   wxCache,
		Metrics: cacheMetrics,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create weather service")
	}
	log.Info().
		Int("providers", registry.ProviderCount()).
		Bool("weather_configured", wxService.Configured()).
		Msg("upstream providers initialized")

	conditionsService := conditions.NewService(conditions.ServiceConfig{
		AirQuality: aqService,
		Weather:    wxService,
		Engine:     aqi.NewEngine(nil),
		Flags:      ffService,
		Logger:     log,
	})

	// Historical dataset and regression model
	var histRepo historical.Repository
	if pool := connect(ctx, log, "historical data", cfg.HistoricalDatabaseURL); pool != nil {
		defer pool.Close()
		histRepo = historical.NewPostgresRepository(pool)
	} else {
		csvRepo := historical.NewCSVRepository(cfg.HistoricalDataPath)
		if err := csvRepo.Load(ctx); err != nil {
			log.Warn().Err(err).Str("path", csvRepo.Path()).Msg("historical dataset not loaded")
		}
		histRepo = csvRepo
	}
	histService := historical.NewService(historical.ServiceConfig{
		Repository: histRepo,
		Logger:     log,
	})

	var predictor handler.Predictor
	model, err := predict.Load(cfg.ModelPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ModelPath).Msg("prediction model not loaded")
	} else {
		predictor = predict.NewPredictor(model)
		log.Info().Int("features", len(model.FeatureNames)).Msg("prediction model loaded")
	}

	// Realtime streaming
	hub := realtime.NewHub(realtime.HubConfig{
		Source: conditionsService,
		Flags:  ffService,
		Config: realtime.Config{
			Interval:     cfg.RealtimeInterval,
			ErrorBackoff: cfg.RealtimeErrorBackoff,
			WriteTimeout: realtime.DefaultWriteTimeout,
		},
		Logger: log,
	})

	// Cache warmer
	warmJob := worker.NewWarmJob(worker.WarmJobConfig{
		Config:     worker.DefaultWarmConfig(),
		Logger:     log,
		AirQuality: aqService,
		Weather:    wxService,
	})

	var scheduler *worker.Scheduler
	if cfg.WarmSchedule != "" {
		scheduler, err = worker.NewScheduler(worker.SchedulerConfig{
			Spec:   cfg.WarmSchedule,
			Logger: log,
		}, func(ctx context.Context) error {
			warmJob.Run(ctx)
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.WarmSchedule).Msg("failed to create warm scheduler")
		}
		scheduler.Start()
		log.Info().Str("schedule", cfg.WarmSchedule).Msg("cache warmer scheduled")
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var trigger *worker.PubSubHandler
	if cfg.PubSubProjectID != "" {
		trigger, err = worker.NewPubSubHandler(workerCtx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Dispatcher:       worker.NewDispatcher(warmJob, ffService, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub trigger")
		}
		go func() {
			if err := trigger.Start(workerCtx); err != nil {
				log.Error().Err(err).Msg("pubsub trigger stopped")
			}
		}()
		log.Info().
			Str("project", cfg.PubSubProjectID).
			Str("subscription", cfg.PubSubSubscription).
			Msg("pubsub trigger started")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		Metrics:            httpMetrics,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RequireTLS:         cfg.RequireTLS,
		Conditions:         conditionsService,
		Historical:         histService,
		Predictor:          predictor,
		Streams:            hub,
		FeatureFlagService: ffService,
		Registry:           registry,
		Caches: []handler.CacheSize{
			{Name: airquality.CacheName, Len: aqService.CacheLen},
			{Name: weather.CacheName, Len: wxService.CacheLen},
		},
		Warmer: warmJob,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr(),
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

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown, so the hub
	// stops them explicitly.
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Int("sessions", hub.Count()).Msg("realtime sessions did not stop in time")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("warm scheduler did not stop in time")
		}
	}

	stopWorkers()
	if trigger != nil {
		if err := trigger.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	log.Info().Msg("server stopped")
}

// connect opens a pool when url is set. Failures are logged and leave the
// caller on its fallback store.
func connect(ctx context.Context, log zerolog.Logger, purpose, url string) *pgxpool.Pool {
	if url == "" {
		return nil
	}

	pool, err := database.Connect(ctx, database.DefaultConfig(url))
	if err != nil {
		log.Error().Err(err).Str("purpose", purpose).Msg("failed to connect to database, using fallback")
		return nil
	}

	log.Info().Str("purpose", purpose).Msg("database connected")
	return pool
}
