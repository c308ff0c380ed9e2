// Package weather provides current weather readings with caching and a
// static mock when no provider credential is configured.
package weather

import (
	"context"

	"github.com/greenguard/greenguard/internal/aqi"
)

// DefaultDescription is used when the provider omits a description.
const DefaultDescription = "Clear sky"

// Reading is a normalized weather observation for a location.
type Reading struct {
	// Temperature in Celsius
	Temperature float64

	// Humidity percentage (0-100)
	Humidity float64

	// WindSpeed in m/s
	WindSpeed float64

	Description string
}

// Conditions returns the subset of the reading used by the adjustment engine.
func (r Reading) Conditions() aqi.Conditions {
	return aqi.Conditions{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
	}
}

// Mock is the static reading served when the provider is not configured or
// has failed with nothing cached.
func Mock() Reading {
	return Reading{
		Temperature: 22,
		Humidity:    65,
		WindSpeed:   3.5,
		Description: DefaultDescription,
	}
}

// Fetcher retrieves a reading from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*Reading, error)
}
