// Package openweathermap provides a client for the OpenWeatherMap current weather API.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/greenguard/greenguard/internal/provider"
	"github.com/greenguard/greenguard/internal/provider/resilience"
	"github.com/greenguard/greenguard/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultTimeout is the per-call budget.
	DefaultTimeout = 5 * time.Second
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a single-attempt resilient client.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 5s).
	Timeout time.Duration

	// Registry tracks the default client's health. Ignored when HTTPClient is set.
	Registry *resilience.Registry
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = cfg.Timeout
		if clientCfg.Timeout == 0 {
			clientCfg.Timeout = DefaultTimeout
		}
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Fetch retrieves current weather for a location.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (*weather.Reading, error) {
	url := fmt.Sprintf("%s/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric",
		c.baseURL, lat, lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewFetchError(ProviderName, nil, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewFetchError(ProviderName, provider.ErrUpstreamUnreachable,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var owmResp currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return nil, provider.NewFetchError(ProviderName, provider.ClassifyDecode(err), fmt.Errorf("decoding response: %w", err))
	}

	if owmResp.Main == nil || owmResp.Wind == nil {
		return nil, provider.NewFetchError(ProviderName, provider.ErrMalformedResponse,
			errors.New("response is missing main or wind block"))
	}

	return toReading(&owmResp), nil
}

// toReading converts OpenWeatherMap response to domain model.
func toReading(resp *currentWeatherResponse) *weather.Reading {
	reading := &weather.Reading{
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Description: weather.DefaultDescription,
	}

	if len(resp.Weather) > 0 && resp.Weather[0].Description != "" {
		reading.Description = resp.Weather[0].Description
	}

	return reading
}

// OpenWeatherMap API response structures.

type currentWeatherResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}
