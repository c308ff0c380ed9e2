package predict

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/historical"
)

// ErrInvalidHorizon is returned when fewer than one day is requested.
var ErrInvalidHorizon = errors.New("days ahead must be positive")

// defaultAQI is the lag value used when there is no history at all.
const defaultAQI = 100

// defaultRecord carries the environmental values used without history.
var defaultRecord = historical.Record{
	PM25:        50,
	PM10:        70,
	CO2:         400,
	Temperature: 25,
	Humidity:    60,
	WindSpeed:   3,
}

// Prediction is a single day-ahead estimate.
type Prediction struct {
	Date time.Time
	AQI  float64
}

// Predictor runs a Model autoregressively over a history window.
type Predictor struct {
	model *Model
}

// NewPredictor wraps model. A nil model yields a predictor that always
// returns ErrModelNotLoaded.
func NewPredictor(model *Model) *Predictor {
	return &Predictor{model: model}
}

// Loaded reports whether a model is available.
func (p *Predictor) Loaded() bool {
	return p != nil && p.model != nil
}

// Predict estimates AQI for the daysAhead days following the latest history
// date (or now when history is empty). Each prediction is appended to the
// working history before the next day's lag features are computed, so error
// in day N carries into every later day.
func (p *Predictor) Predict(history []historical.Record, daysAhead int, now time.Time) ([]Prediction, error) {
	if !p.Loaded() {
		return nil, ErrModelNotLoaded
	}
	if daysAhead < 1 {
		return nil, ErrInvalidHorizon
	}

	rows := make([]historical.Record, len(history), len(history)+daysAhead)
	copy(rows, history)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date.Before(rows[j].Date)
	})

	last := now
	if len(rows) > 0 {
		last = rows[len(rows)-1].Date
	}

	predictions := make([]Prediction, 0, daysAhead)
	for i := 1; i <= daysAhead; i++ {
		target := last.AddDate(0, 0, i)

		value := math.Max(0, p.model.Evaluate(Features(rows, target)))
		predictions = append(predictions, Prediction{
			Date: target,
			AQI:  aqi.Round(value, 1),
		})

		next := defaultRecord
		if len(rows) > 0 {
			next = rows[len(rows)-1]
		}
		next.Date = target
		next.AQI = value
		rows = append(rows, next)
	}

	return predictions, nil
}

// Features builds the feature set for target from rows, which must be ordered
// oldest first.
func Features(rows []historical.Record, target time.Time) map[string]float64 {
	features := map[string]float64{
		FeatureDay:     float64(target.Day()),
		FeatureMonth:   float64(target.Month()),
		FeatureWeekday: float64((int(target.Weekday()) + 6) % 7), // Monday = 0
	}

	n := len(rows)
	if n >= 3 {
		features[FeatureLag1] = rows[n-1].AQI
		features[FeatureLag2] = rows[n-2].AQI
		features[FeatureLag3] = rows[n-3].AQI
	} else {
		mean := float64(defaultAQI)
		if n > 0 {
			sum := 0.0
			for _, r := range rows {
				sum += r.AQI
			}
			mean = sum / float64(n)
		}
		features[FeatureLag1] = mean
		if n > 0 {
			features[FeatureLag1] = rows[n-1].AQI
		}
		features[FeatureLag2] = mean
		features[FeatureLag3] = mean
	}

	latest := defaultRecord
	if n > 0 {
		latest = rows[n-1]
	}
	features[FeaturePM25] = latest.PM25
	features[FeaturePM10] = latest.PM10
	features[FeatureCO2] = latest.CO2
	features[FeatureTemperature] = latest.Temperature
	features[FeatureHumidity] = latest.Humidity
	features[FeatureWindSpeed] = latest.WindSpeed

	return features
}
