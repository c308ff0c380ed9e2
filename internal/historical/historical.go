// Package historical serves the read-only historical AQI dataset.
package historical

import (
	"context"
	"errors"
	"time"
)

// ErrDataFileMissing is returned when the dataset cannot be found.
var ErrDataFileMissing = errors.New("historical data file not found")

// DateLayout is the date format used by the dataset and API.
const DateLayout = "2006-01-02"

// Record is one daily observation for a city.
type Record struct {
	Date        time.Time
	City        string
	Lat         float64
	Lon         float64
	AQI         float64
	PM25        float64
	PM10        float64
	CO2         float64
	Temperature float64
	Humidity    float64
	WindSpeed   float64
}

// Repository provides access to the dataset.
type Repository interface {
	// All returns every record in the dataset.
	All(ctx context.Context) ([]Record, error)
}
