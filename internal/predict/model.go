// Package predict produces day-ahead AQI estimates from a pre-trained
// lag-feature regression model.
package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrModelNotLoaded is returned when no trained model is available.
var ErrModelNotLoaded = errors.New("model not loaded")

// Feature names understood by the predictor.
const (
	FeatureDay         = "day"
	FeatureMonth       = "month"
	FeatureWeekday     = "weekday"
	FeatureLag1        = "aqi_lag_1"
	FeatureLag2        = "aqi_lag_2"
	FeatureLag3        = "aqi_lag_3"
	FeaturePM25        = "pm25"
	FeaturePM10        = "pm10"
	FeatureCO2         = "co2"
	FeatureTemperature = "temperature"
	FeatureHumidity    = "humidity"
	FeatureWindSpeed   = "wind_speed"
)

// Model is a linear regressor over named features, as exported by the
// offline training step.
type Model struct {
	FeatureNames []string           `json:"feature_names"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// Load reads a model artifact. A missing file yields ErrModelNotLoaded.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrModelNotLoaded, path)
		}
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}
	if len(m.FeatureNames) == 0 {
		return nil, fmt.Errorf("decoding model: %s has no feature_names", path)
	}

	return &m, nil
}

// Evaluate applies the model to a feature set. Features the model names but
// the set lacks count as zero.
func (m *Model) Evaluate(features map[string]float64) float64 {
	y := m.Intercept
	for _, name := range m.FeatureNames {
		y += m.Coefficients[name] * features[name]
	}
	return y
}
