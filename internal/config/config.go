// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for every setting that has one.
const (
	DefaultPort               = "8020"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultAirQualityTTL      = 15 * time.Minute
	DefaultWeatherTTL         = 5 * time.Minute
	DefaultCacheMaxEntries    = 1024
	DefaultCachePrecision     = 2
	DefaultAirQualityTimeout  = 10 * time.Second
	DefaultWeatherTimeout     = 5 * time.Second
	DefaultRealtimeInterval   = 15 * time.Second
	DefaultRealtimeBackoff    = 10 * time.Second
	DefaultHistoricalDataPath = "data/air_quality_data.csv"
	DefaultModelPath          = "ml/aqi_model.json"
	DefaultWarmSchedule       = "@every 10m"
	DefaultShutdownTimeout    = 30 * time.Second
)

// DefaultCORSAllowedOrigins are the production frontend and the two local
// dev servers.
var DefaultCORSAllowedOrigins = []string{
	"https://green-guard-nu.vercel.app",
	"http://localhost:3000",
	"http://localhost:5173",
}

// Config holds the service configuration.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	OpenWeatherAPIKey      string
	OpenWeatherBaseURL     string
	OpenMeteoAirQualityURL string

	AirQualityTTL     time.Duration
	WeatherTTL        time.Duration
	CacheMaxEntries   int
	CachePrecision    int
	AirQualityTimeout time.Duration
	WeatherTimeout    time.Duration

	RealtimeInterval     time.Duration
	RealtimeErrorBackoff time.Duration

	HistoricalDataPath    string
	HistoricalDatabaseURL string
	ModelPath             string

	CORSAllowedOrigins []string
	RequireTLS         bool

	OTelEnabled  bool
	OTelEndpoint string

	WarmSchedule       string
	PubSubProjectID    string
	PubSubSubscription string

	DatabaseURL     string
	ShutdownTimeout time.Duration

	warnings []string
}

// Load reads .env (when present) into the process environment and builds the
// configuration from it. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.Getenv), nil
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) *Config {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:     r.str("PORT", DefaultPort),
		Env:      r.str("APP_ENV", DefaultEnv),
		LogLevel: r.str("LOG_LEVEL", DefaultLogLevel),

		OpenWeatherAPIKey:      r.str("OPENWEATHER_API_KEY", ""),
		OpenWeatherBaseURL:     r.str("OPENWEATHER_BASE_URL", ""),
		OpenMeteoAirQualityURL: r.str("OPENMETEO_AIR_QUALITY_URL", ""),

		AirQualityTTL:     r.duration("AIR_QUALITY_TTL", DefaultAirQualityTTL),
		WeatherTTL:        r.duration("WEATHER_TTL", DefaultWeatherTTL),
		CacheMaxEntries:   r.integer("CACHE_MAX_ENTRIES", DefaultCacheMaxEntries),
		CachePrecision:    r.integer("CACHE_PRECISION", DefaultCachePrecision),
		AirQualityTimeout: r.duration("AIR_QUALITY_TIMEOUT", DefaultAirQualityTimeout),
		WeatherTimeout:    r.duration("WEATHER_TIMEOUT", DefaultWeatherTimeout),

		RealtimeInterval:     r.duration("REALTIME_INTERVAL", DefaultRealtimeInterval),
		RealtimeErrorBackoff: r.duration("REALTIME_ERROR_BACKOFF", DefaultRealtimeBackoff),

		HistoricalDataPath:    r.str("HISTORICAL_DATA_PATH", DefaultHistoricalDataPath),
		HistoricalDatabaseURL: r.str("HISTORICAL_DATABASE_URL", ""),
		ModelPath:             r.str("MODEL_PATH", DefaultModelPath),

		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", DefaultCORSAllowedOrigins),
		RequireTLS:         r.boolean("REQUIRE_TLS", false),

		OTelEnabled:  r.boolean("OTEL_ENABLED", false),
		OTelEndpoint: r.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		WarmSchedule:       r.rawStr("WARM_SCHEDULE", DefaultWarmSchedule),
		PubSubProjectID:    r.str("PUBSUB_PROJECT_ID", ""),
		PubSubSubscription: r.str("PUBSUB_SUBSCRIPTION", ""),

		DatabaseURL:     r.str("DATABASE_URL", ""),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}
	cfg.warnings = r.warnings
	return cfg
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate reports settings that were ignored or look wrong. None of them
// prevents startup.
func (c *Config) Validate() []string {
	warnings := append([]string(nil), c.warnings...)

	if c.OpenWeatherAPIKey == "" {
		warnings = append(warnings, "OPENWEATHER_API_KEY is not set, serving mock weather")
	}
	if c.CacheMaxEntries <= 0 {
		warnings = append(warnings, fmt.Sprintf("CACHE_MAX_ENTRIES=%d is not positive, using %d", c.CacheMaxEntries, DefaultCacheMaxEntries))
		c.CacheMaxEntries = DefaultCacheMaxEntries
	}
	// Zero is the cache's "use the default" value, so it cannot mean whole degrees here.
	if c.CachePrecision < 1 || c.CachePrecision > 6 {
		warnings = append(warnings, fmt.Sprintf("CACHE_PRECISION=%d is outside 1..6, using %d", c.CachePrecision, DefaultCachePrecision))
		c.CachePrecision = DefaultCachePrecision
	}
	if c.OTelEnabled && c.OTelEndpoint == "" {
		warnings = append(warnings, "OTEL_ENABLED is set without OTEL_EXPORTER_OTLP_ENDPOINT, using the exporter default")
	}
	if (c.PubSubProjectID == "") != (c.PubSubSubscription == "") {
		warnings = append(warnings, "PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION must be set together, trigger disabled")
		c.PubSubProjectID, c.PubSubSubscription = "", ""
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin == "*" && c.IsProduction() {
			warnings = append(warnings, "CORS_ALLOWED_ORIGINS allows every origin in production")
			break
		}
	}

	return warnings
}

type reader struct {
	getenv   func(string) string
	warnings []string
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

// rawStr is str where "off" or "disabled" switches the setting off.
func (r *reader) rawStr(key, def string) string {
	v := strings.TrimSpace(r.getenv(key))
	switch v {
	case "":
		return def
	case "off", "disabled":
		return ""
	default:
		return v
	}
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.warnings = append(r.warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, v, def))
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("%s=%q is not an integer, using %d", key, v, def))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("%s=%q is not a boolean, using %t", key, v, def))
		return def
	}
	return b
}

func (r *reader) list(key string, def []string) []string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
