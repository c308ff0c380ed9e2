package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenguard/greenguard/internal/airquality/openmeteo"
	"github.com/greenguard/greenguard/internal/provider"
	"github.com/greenguard/greenguard/internal/provider/resilience"
)

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "17.385000", r.URL.Query().Get("latitude"))
		assert.Equal(t, "78.486700", r.URL.Query().Get("longitude"))
		assert.Equal(t,
			"pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone,european_aqi",
			r.URL.Query().Get("current"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"latitude": 17.4,
			"longitude": 78.5,
			"current": {
				"time": "2026-03-01T12:00",
				"pm10": 61.2,
				"pm2_5": 33.4,
				"carbon_monoxide": 412.0,
				"nitrogen_dioxide": 18.7,
				"sulphur_dioxide": 6.1,
				"ozone": 71.0,
				"european_aqi": 58
			}
		}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	reading, err := client.Fetch(context.Background(), 17.385, 78.4867)
	require.NoError(t, err)

	assert.Equal(t, 58.0, reading.AQI)
	assert.Equal(t, 33.4, reading.PM25)
	assert.Equal(t, 61.2, reading.PM10)
	assert.Equal(t, 412.0, reading.CO)
	assert.Equal(t, 18.7, reading.NO2)
	assert.Equal(t, 71.0, reading.O3)
	assert.Equal(t, 6.1, reading.SO2)
	assert.Equal(t, "open-meteo", client.Name())
}

func TestClient_Fetch_NullValuesAreZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current": {"european_aqi": null, "pm2_5": 12.5}}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	reading, err := client.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reading.AQI)
	assert.Equal(t, 12.5, reading.PM25)
}

func TestClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "missing current block",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"latitude": 1, "longitude": 2}`))
			},
			want: provider.ErrMalformedResponse,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			want: provider.ErrMalformedResponse,
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			want: provider.ErrMalformedResponse,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			want: provider.ErrUpstreamUnreachable,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: provider.ErrUpstreamUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: server.URL})

			_, err := client.Fetch(context.Background(), 1, 2)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"current": {}}`))
	}))
	defer server.Close()

	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
	})

	_, err := client.Fetch(context.Background(), 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUpstreamTimeout)
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	registry := resilience.NewRegistry()
	client := openmeteo.NewClient(openmeteo.ClientConfig{BaseURL: url, Registry: registry})

	_, err := client.Fetch(context.Background(), 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUpstreamUnreachable)

	health := registry.GetHealth(openmeteo.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
}
