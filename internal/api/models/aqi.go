package models

// Index is the response of GET /.
type Index struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// CurrentAQI is the weather-adjusted reading for a location.
type CurrentAQI struct {
	AQI         float64 `json:"aqi"`
	PM25        float64 `json:"pm25"`
	PM10        float64 `json:"pm10"`
	CO2         float64 `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
}

// ForecastDay is one day of a synthetic forecast.
type ForecastDay struct {
	Date        string  `json:"date"`
	AQI         float64 `json:"aqi"`
	PM25        float64 `json:"pm25"`
	PM10        float64 `json:"pm10"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// ForecastResponse wraps a forecast.
type ForecastResponse struct {
	Forecast []ForecastDay `json:"forecast"`
}

// HistoricalRecord is one row of the historical dataset.
type HistoricalRecord struct {
	Date        string  `json:"date"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AQI         float64 `json:"aqi"`
	PM25        float64 `json:"pm25"`
	PM10        float64 `json:"pm10"`
	CO2         float64 `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// HistoricalResponse wraps historical rows, oldest first.
type HistoricalResponse struct {
	Data []HistoricalRecord `json:"data"`
}

// Prediction is one model-predicted day.
type Prediction struct {
	Date string  `json:"date"`
	AQI  float64 `json:"aqi"`
}

// PredictionResponse wraps model predictions.
type PredictionResponse struct {
	Predictions []Prediction `json:"predictions"`
	BasedOn     int          `json:"based_on"`
}
