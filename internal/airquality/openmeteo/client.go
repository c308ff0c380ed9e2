// Package openmeteo provides a client for the Open-Meteo air quality API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/greenguard/greenguard/internal/airquality"
	"github.com/greenguard/greenguard/internal/provider"
	"github.com/greenguard/greenguard/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Open-Meteo air quality endpoint.
	DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	// ProviderName identifies this provider.
	ProviderName = "open-meteo"

	// DefaultTimeout is the per-call budget.
	DefaultTimeout = 10 * time.Second

	currentFields = "pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone,european_aqi"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL is the API endpoint (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a single-attempt resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry tracks the default client's health. Ignored when HTTPClient is set.
	Registry *resilience.Registry
}

// Client is an Open-Meteo air quality API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Open-Meteo client.
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
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types.

type airQualityResponse struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Current   *currentReading `json:"current"`
}

type currentReading struct {
	Time            string   `json:"time"`
	PM10            *float64 `json:"pm10"`
	PM25            *float64 `json:"pm2_5"`
	CarbonMonoxide  *float64 `json:"carbon_monoxide"`
	NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
	SulphurDioxide  *float64 `json:"sulphur_dioxide"`
	Ozone           *float64 `json:"ozone"`
	EuropeanAQI     *float64 `json:"european_aqi"`
}

// Fetch retrieves the current air quality for a location.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	url := fmt.Sprintf("%s?latitude=%.6f&longitude=%.6f&current=%s", c.baseURL, lat, lon, currentFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewFetchError(ProviderName, nil, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewFetchError(ProviderName, provider.ErrUpstreamUnreachable,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var aqResp airQualityResponse
	if err := json.NewDecoder(resp.Body).Decode(&aqResp); err != nil {
		return nil, provider.NewFetchError(ProviderName, provider.ClassifyDecode(err), fmt.Errorf("decoding response: %w", err))
	}

	if aqResp.Current == nil {
		return nil, provider.NewFetchError(ProviderName, provider.ErrMalformedResponse,
			errors.New("response has no current block"))
	}

	return toReading(aqResp.Current), nil
}

// toReading converts the API payload to the domain model. Null values count as zero.
func toReading(cur *currentReading) *airquality.Reading {
	return &airquality.Reading{
		AQI:  value(cur.EuropeanAQI),
		PM25: value(cur.PM25),
		PM10: value(cur.PM10),
		CO:   value(cur.CarbonMonoxide),
		NO2:  value(cur.NitrogenDioxide),
		O3:   value(cur.Ozone),
		SO2:  value(cur.SulphurDioxide),
	}
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
