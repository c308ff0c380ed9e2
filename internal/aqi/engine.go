package aqi

import (
	"math"
	"math/rand/v2"
	"sync"
)

// AQI bounds applied after adjustment.
const (
	MinAQI = 10.0
	MaxAQI = 500.0
)

// Conditions is the weather input to the adjustment engine.
type Conditions struct {
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent
	WindSpeed   float64 // m/s
}

// Snapshot is an adjusted, non-persisted AQI reading.
type Snapshot struct {
	AQI         float64
	PM25        float64
	PM10        float64
	CO2         float64
	Temperature float64
	Humidity    float64
	WindSpeed   float64
}

// Factors applies the deterministic weather factors to base in a fixed order:
// temperature, then humidity, then wind. Each factor scales the running value.
func Factors(base float64, c Conditions) float64 {
	adjusted := base

	if c.Temperature > 25 {
		adjusted *= 1 + (c.Temperature-25)*0.02
	}

	switch {
	case c.Humidity > 70:
		adjusted *= 0.9
	case c.Humidity < 30:
		adjusted *= 1.1
	}

	switch {
	case c.WindSpeed > 10:
		adjusted *= 0.8
	case c.WindSpeed < 2:
		adjusted *= 1.2
	}

	return adjusted
}

// Clamp bounds an AQI value to [MinAQI, MaxAQI].
func Clamp(v float64) float64 {
	return math.Max(MinAQI, math.Min(MaxAQI, v))
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Engine combines baseline AQI with weather into an adjusted snapshot.
// Sensor jitter is drawn from an injected random source so results are
// reproducible under a fixed seed. Engine is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates an engine drawing jitter from src.
// A nil src uses a randomly seeded PCG source.
func NewEngine(src rand.Source) *Engine {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Engine{rng: rand.New(src)}
}

// Uniform returns a value drawn uniformly from [lo, hi).
func (e *Engine) Uniform(lo, hi float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uniform(lo, hi)
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

// Adjust applies the weather factors, a ±10% jitter and the [10, 500] clamp to
// base, then derives particulate and CO2 estimates. Values are not rounded.
func (e *Engine) Adjust(base float64, c Conditions) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	adjusted := Factors(base, c)
	adjusted *= e.uniform(0.9, 1.1)
	adjusted = Clamp(adjusted)

	pm25 := adjusted / 5
	pm10 := pm25 * 1.5
	pm25 *= e.uniform(0.8, 1.2)
	pm10 *= e.uniform(0.8, 1.2)

	return Snapshot{
		AQI:         adjusted,
		PM25:        pm25,
		PM10:        pm10,
		CO2:         e.uniform(350, 450),
		Temperature: c.Temperature,
		Humidity:    c.Humidity,
		WindSpeed:   c.WindSpeed,
	}
}
