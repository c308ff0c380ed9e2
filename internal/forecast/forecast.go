// Package forecast generates synthetic multi-day AQI forecasts by perturbing
// current weather and running it through the adjustment engine.
package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/greenguard/greenguard/internal/aqi"
)

// MaxDays is the longest forecast horizon.
const MaxDays = 7

// ErrInvalidDays is returned when the requested horizon is outside 1..MaxDays.
var ErrInvalidDays = errors.New("days must be between 1 and 7")

// Point is a single forecast day.
type Point struct {
	Date        time.Time
	AQI         float64
	PM25        float64
	PM10        float64
	Temperature float64
	Humidity    float64
	WindSpeed   float64
}

// Generator produces forecasts. Its randomness comes from the engine's source.
type Generator struct {
	engine *aqi.Engine
}

// NewGenerator creates a generator backed by engine.
func NewGenerator(engine *aqi.Engine) *Generator {
	return &Generator{engine: engine}
}

// Generate returns one point per day for days 1..days after now. Each day is
// computed from the baseline AQI and independently perturbed weather; only the
// day-indexed warming drift and trend accumulate.
func (g *Generator) Generate(base float64, current aqi.Conditions, days int, now time.Time) ([]Point, error) {
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidDays
	}

	points := make([]Point, 0, days)
	for day := 1; day <= days; day++ {
		d := float64(day)

		weather := aqi.Conditions{
			Temperature: current.Temperature + g.engine.Uniform(-3, 3) + d*0.5,
			Humidity:    math.Max(20, math.Min(90, current.Humidity+g.engine.Uniform(-10, 10))),
			WindSpeed:   math.Max(0, current.WindSpeed+g.engine.Uniform(-1.5, 1.5)),
		}

		snap := g.engine.Adjust(base, weather)
		trend := 1 + (g.engine.Uniform(-0.1, 0.1) + d*0.02)

		points = append(points, Point{
			Date:        time.Date(now.Year(), now.Month(), now.Day()+day, 0, 0, 0, 0, now.Location()),
			AQI:         aqi.Clamp(snap.AQI * trend),
			PM25:        snap.PM25,
			PM10:        snap.PM10,
			Temperature: weather.Temperature,
			Humidity:    weather.Humidity,
			WindSpeed:   weather.WindSpeed,
		})
	}

	return points, nil
}
