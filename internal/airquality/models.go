// Package airquality provides current air-quality readings with caching and
// a synthetic fallback when the provider is unavailable.
package airquality

import (
	"context"
	"math"
)

// Reading is a normalized air-quality observation for a location.
// The composite index follows the provider's European AQI scale.
type Reading struct {
	AQI  float64
	PM25 float64
	PM10 float64
	CO   float64
	NO2  float64
	O3   float64
	SO2  float64
}

// Fetcher retrieves a reading from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*Reading, error)
}

// FromAQI derives a full reading from a composite index using fixed ratios,
// rounded to two decimals.
func FromAQI(index float64) Reading {
	return Reading{
		AQI:  round2(index),
		PM25: round2(index / 5),
		PM10: round2(index / 4),
		CO:   round2(index * 2),
		NO2:  round2(index / 3),
		O3:   round2(index / 2),
		SO2:  round2(index / 10),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
