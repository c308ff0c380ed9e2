package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenguard/greenguard/internal/api/handler"
	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/featureflags"
	"github.com/greenguard/greenguard/internal/provider/resilience"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type staticCount int

func (c staticCount) Count() int { return int(c) }

type staticWarmer map[string]interface{}

func (w staticWarmer) MetricsSnapshot() map[string]interface{} { return w }

type staticFlags map[string]bool

func (f staticFlags) IsEnabled(_ context.Context, key string) bool { return f[key] }

// trippedRegistry returns a registry with one healthy provider and one whose
// circuit is open.
func trippedRegistry(t *testing.T) *resilience.Registry {
	t.Helper()
	reg := resilience.NewRegistry()

	healthy := resilience.DefaultClientConfig("openmeteo")
	healthy.Registry = reg
	healthy.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
	okClient := resilience.NewClient(healthy)

	cb := resilience.DefaultCircuitBreakerConfig("openweathermap")
	cb.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	failing := resilience.DefaultClientConfig("openweathermap")
	failing.CircuitBreaker = &cb
	failing.Registry = reg
	failing.Transport = roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	badClient := resilience.NewClient(failing)

	req, err := http.NewRequest(http.MethodGet, "http://upstream.test/", http.NoBody)
	require.NoError(t, err)
	resp, err := okClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = badClient.Do(req)
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, badClient.CircuitBreakerState())

	return reg
}

func TestOpsHandler_Index(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsHandlerConfig{Version: "dev"})

	rec := httptest.NewRecorder()
	h.Index(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.Index
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "GreenGuard AI API", body.Message)
	assert.Equal(t, handler.APIVersion, body.Version)
	assert.Contains(t, body.Endpoints, "current_aqi")
	assert.Contains(t, body.Endpoints, "realtime")
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsHandlerConfig{})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestOpsHandler_SystemStatus_Minimal(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsHandlerConfig{Version: "1.2.3"})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.HealthStatusOK, body.Status)
	assert.Equal(t, "healthy", body.Summary)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Empty(t, body.Providers)
	assert.Empty(t, body.Caches)
	assert.Empty(t, body.ActiveDegradationFlags)
}

func TestOpsHandler_SystemStatus_Degraded(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:  "1.2.3",
		Registry: trippedRegistry(t),
		Caches: []handler.CacheSize{
			{Name: "airquality", Len: func() int { return 4 }},
			{Name: "weather", Len: func() int { return 2 }},
		},
		Streams: staticCount(3),
		Warmer:  staticWarmer{"runs": 1},
		Flags:   staticFlags{featureflags.FlagCachedOnlyUpstream: true},
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.HealthStatusDegraded, body.Status)
	assert.Equal(t, "unhealthy", body.Summary)
	assert.Equal(t, 3, body.ActiveStreams)
	assert.Equal(t, []string{featureflags.FlagCachedOnlyUpstream}, body.ActiveDegradationFlags)
	assert.Equal(t, []models.CacheStatus{{Name: "airquality", Entries: 4}, {Name: "weather", Entries: 2}}, body.Caches)
	assert.EqualValues(t, 1, body.Warmer["runs"])

	require.Len(t, body.Providers, 2)

	ok := body.Providers[0]
	assert.Equal(t, "openmeteo", ok.Provider)
	assert.Equal(t, models.HealthStatusOK, ok.Status)
	assert.Equal(t, "closed", ok.CircuitState)
	assert.NotNil(t, ok.LastSuccessAt)
	assert.Nil(t, ok.Message)

	bad := body.Providers[1]
	assert.Equal(t, "openweathermap", bad.Provider)
	assert.Equal(t, models.HealthStatusFail, bad.Status)
	assert.Equal(t, "open", bad.CircuitState)
	assert.NotNil(t, bad.LastFailureAt)
	require.NotNil(t, bad.Message)
	assert.Contains(t, *bad.Message, "connection refused")
}

func TestFeatureFlagsHandler_List(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
			featureflags.FlagDisableRealtimeAlerts: {Key: featureflags.FlagDisableRealtimeAlerts, Value: true, UpdatedAt: fixed},
			featureflags.FlagCachedOnlyUpstream:    {Key: featureflags.FlagCachedOnlyUpstream, Value: false, UpdatedAt: fixed},
		}),
	})
	h := handler.NewFeatureFlagsHandler(svc)

	rec := httptest.NewRecorder()
	h.ListFeatureFlags(rec, httptest.NewRequest(http.MethodGet, "/api/feature-flags", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flags":[
		{"key":"cached_only_upstream","value":false,"updatedAt":"2026-01-02T03:04:05Z"},
		{"key":"disable_realtime_alerts","value":true,"updatedAt":"2026-01-02T03:04:05Z"}
	]}`, rec.Body.String())
}
