package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenguard/greenguard/internal/config"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := config.FromEnv(envMap(nil))

	assert.Equal(t, "8020", cfg.Port)
	assert.Equal(t, ":8020", cfg.Addr())
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 15*time.Minute, cfg.AirQualityTTL)
	assert.Equal(t, 5*time.Minute, cfg.WeatherTTL)
	assert.Equal(t, 1024, cfg.CacheMaxEntries)
	assert.Equal(t, 2, cfg.CachePrecision)
	assert.Equal(t, 10*time.Second, cfg.AirQualityTimeout)
	assert.Equal(t, 5*time.Second, cfg.WeatherTimeout)
	assert.Equal(t, 15*time.Second, cfg.RealtimeInterval)
	assert.Equal(t, 10*time.Second, cfg.RealtimeErrorBackoff)
	assert.Equal(t, "data/air_quality_data.csv", cfg.HistoricalDataPath)
	assert.Equal(t, "ml/aqi_model.json", cfg.ModelPath)
	assert.Equal(t, config.DefaultCORSAllowedOrigins, cfg.CORSAllowedOrigins)
	assert.Equal(t, "@every 10m", cfg.WarmSchedule)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.OpenWeatherAPIKey)
	assert.False(t, cfg.OTelEnabled)

	assert.Equal(t, []string{"OPENWEATHER_API_KEY is not set, serving mock weather"}, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg := config.FromEnv(envMap(map[string]string{
		"PORT":                 "9000",
		"APP_ENV":              "production",
		"OPENWEATHER_API_KEY":  "key",
		"AIR_QUALITY_TTL":      "30m",
		"CACHE_MAX_ENTRIES":    "64",
		"REALTIME_INTERVAL":    "1s",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"OTEL_ENABLED":         "true",
		"WARM_SCHEDULE":        "off",
		"DATABASE_URL":         "postgres://localhost/greenguard",
	}))

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "key", cfg.OpenWeatherAPIKey)
	assert.Equal(t, 30*time.Minute, cfg.AirQualityTTL)
	assert.Equal(t, 64, cfg.CacheMaxEntries)
	assert.Equal(t, time.Second, cfg.RealtimeInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.OTelEnabled)
	assert.Empty(t, cfg.WarmSchedule)
	assert.Equal(t, "postgres://localhost/greenguard", cfg.DatabaseURL)
}

func TestValidate_InvalidValuesFallBack(t *testing.T) {
	cfg := config.FromEnv(envMap(map[string]string{
		"OPENWEATHER_API_KEY": "key",
		"WEATHER_TTL":         "soon",
		"CACHE_MAX_ENTRIES":   "lots",
		"CACHE_PRECISION":     "9",
		"OTEL_ENABLED":        "maybe",
		"PUBSUB_PROJECT_ID":   "project",
	}))

	assert.Equal(t, config.DefaultWeatherTTL, cfg.WeatherTTL)
	assert.Equal(t, config.DefaultCacheMaxEntries, cfg.CacheMaxEntries)
	assert.False(t, cfg.OTelEnabled)

	warnings := cfg.Validate()
	assert.Len(t, warnings, 5)
	assert.Equal(t, config.DefaultCachePrecision, cfg.CachePrecision)
	assert.Empty(t, cfg.PubSubProjectID)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GREENGUARD_TEST_PORT=1234\nPORT=7777\n"), 0o600))

	t.Chdir(dir)
	t.Setenv("PORT", "8888")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8888", cfg.Port, "process environment wins over .env")
	assert.Equal(t, "1234", os.Getenv("GREENGUARD_TEST_PORT"))
	os.Unsetenv("GREENGUARD_TEST_PORT")
}

func TestLoad_MissingDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load()
	require.NoError(t, err)
}

func TestValidate_CachePrecisionRange(t *testing.T) {
	tests := map[string]struct {
		value string
		want  int
		warns bool
	}{
		"zero":     {value: "0", want: config.DefaultCachePrecision, warns: true},
		"negative": {value: "-1", want: config.DefaultCachePrecision, warns: true},
		"too fine": {value: "7", want: config.DefaultCachePrecision, warns: true},
		"coarsest": {value: "1", want: 1},
		"finest":   {value: "6", want: 6},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.FromEnv(envMap(map[string]string{
				"OPENWEATHER_API_KEY": "key",
				"CACHE_PRECISION":     tt.value,
			}))

			warnings := cfg.Validate()

			assert.Equal(t, tt.want, cfg.CachePrecision)
			if tt.warns {
				require.Len(t, warnings, 1)
				assert.Contains(t, warnings[0], "CACHE_PRECISION="+tt.value)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}
