// Package worker keeps the provider caches warm for frequently requested
// locations, on a schedule or on demand.
package worker

import (
	"sort"
	"time"
)

// WarmTarget is a named group of locations to keep cached.
type WarmTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the coordinates to warm.
	Points []Point

	// Priority orders targets (lower = warmed first).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// Targets are the locations to warm. If empty, DefaultWarmTargets is used.
	Targets []WarmTarget

	// Concurrency is the number of points warmed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the work for a single point.
	// Default: 30 seconds
	Timeout time.Duration

	// WarmAirQuality enables the air-quality cache.
	WarmAirQuality bool

	// WarmWeather enables the weather cache.
	WarmWeather bool
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Targets:        DefaultWarmTargets(),
		Concurrency:    3,
		Timeout:        30 * time.Second,
		WarmAirQuality: true,
		WarmWeather:    true,
	}
}

// DefaultWarmTargets returns the cities covered by the historical dataset.
func DefaultWarmTargets() []WarmTarget {
	return []WarmTarget{
		{Name: "Hyderabad", Priority: 1, Points: []Point{{Lat: 17.3850, Lon: 78.4867}}},
		{Name: "Delhi", Priority: 1, Points: []Point{{Lat: 28.6139, Lon: 77.2090}}},
		{Name: "Mumbai", Priority: 1, Points: []Point{{Lat: 19.0760, Lon: 72.8777}}},
		{Name: "Bangalore", Priority: 2, Points: []Point{{Lat: 12.9716, Lon: 77.5946}}},
		{Name: "Chennai", Priority: 2, Points: []Point{{Lat: 13.0827, Lon: 80.2707}}},
	}
}

// AllPoints returns the points of every target, higher priority first.
func (c WarmConfig) AllPoints() []Point {
	targets := append([]WarmTarget(nil), c.Targets...)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to warm.
func (c WarmConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
