package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/api/response"
	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/conditions"
	"github.com/greenguard/greenguard/internal/forecast"
	"github.com/greenguard/greenguard/internal/historical"
	"github.com/greenguard/greenguard/internal/predict"
	"github.com/greenguard/greenguard/internal/realtime"
)

// ConditionsService provides adjusted readings and forecasts.
type ConditionsService interface {
	Current(ctx context.Context, lat, lon float64) (*conditions.Current, error)
	Forecast(ctx context.Context, lat, lon float64, days int) ([]forecast.Point, error)
}

// HistoricalService looks up dataset rows near a location.
type HistoricalService interface {
	Nearby(ctx context.Context, lat, lon float64) ([]historical.Record, error)
}

// Predictor runs the regression model over a history window.
type Predictor interface {
	Predict(history []historical.Record, daysAhead int, now time.Time) ([]predict.Prediction, error)
}

// AQIHandlerConfig holds the dependencies of AQIHandler.
type AQIHandlerConfig struct {
	Conditions ConditionsService
	Historical HistoricalService
	Predictor  Predictor // optional; nil answers 404
	Logger     zerolog.Logger

	// Now overrides the clock used for predictions. Defaults to time.Now.
	Now func() time.Time
}

// AQIHandler handles the air quality endpoints.
type AQIHandler struct {
	conditions ConditionsService
	historical HistoricalService
	predictor  Predictor
	logger     zerolog.Logger
	now        func() time.Time
}

// NewAQIHandler creates a new AQIHandler.
func NewAQIHandler(cfg AQIHandlerConfig) *AQIHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AQIHandler{
		conditions: cfg.Conditions,
		historical: cfg.Historical,
		predictor:  cfg.Predictor,
		logger:     cfg.Logger,
		now:        now,
	}
}

// CurrentAQI handles GET /api/current-aqi - weather-adjusted current AQI.
// Upstream failures never reach the client; degraded data is served instead.
func (h *AQIHandler) CurrentAQI(w http.ResponseWriter, r *http.Request) {
	loc, errs := parseLocation(r.URL.Query(), nil)
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	cur, err := h.conditions.Current(r.Context(), loc.lat, loc.lon)
	if err != nil {
		writeError(w, r, h.logger, "fetching AQI", err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.CurrentAQI{
		AQI:         aqi.Round(cur.AQI, 1),
		PM25:        aqi.Round(cur.PM25, 1),
		PM10:        aqi.Round(cur.PM10, 1),
		CO2:         aqi.Round(cur.CO2, 1),
		Temperature: aqi.Round(cur.Temperature, 1),
		Humidity:    aqi.Round(cur.Humidity, 1),
		WindSpeed:   aqi.Round(cur.WindSpeed, 1),
		Status:      cur.Status,
		Timestamp:   cur.Timestamp.UTC().Format(realtime.TimestampLayout),
	})
}

// Forecast handles GET /api/forecast - synthetic forecast for 1..7 days.
func (h *AQIHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	loc, days, errs := locationAndDays(r)
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	points, err := h.conditions.Forecast(r.Context(), loc.lat, loc.lon, days)
	if err != nil {
		writeError(w, r, h.logger, "generating forecast", err)
		return
	}

	out := make([]models.ForecastDay, 0, len(points))
	for _, p := range points {
		out = append(out, models.ForecastDay{
			Date:        p.Date.Format(models.DateLayout),
			AQI:         aqi.Round(p.AQI, 1),
			PM25:        aqi.Round(p.PM25, 1),
			PM10:        aqi.Round(p.PM10, 1),
			Temperature: aqi.Round(p.Temperature, 1),
			Humidity:    aqi.Round(p.Humidity, 1),
			WindSpeed:   aqi.Round(p.WindSpeed, 1),
		})
	}

	response.JSON(w, r, http.StatusOK, models.ForecastResponse{Forecast: out})
}

// Historical handles GET /api/historical - dataset rows near a location.
func (h *AQIHandler) Historical(w http.ResponseWriter, r *http.Request) {
	loc, errs := parseLocation(r.URL.Query(), nil)
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	rows, err := h.nearby(r.Context(), loc)
	if err != nil {
		writeError(w, r, h.logger, "fetching historical data", err)
		return
	}

	out := make([]models.HistoricalRecord, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toHistoricalRecord(rec))
	}

	response.JSON(w, r, http.StatusOK, models.HistoricalResponse{Data: out})
}

// Predict handles GET /api/predict - regression model predictions seeded
// from the historical rows near a location.
func (h *AQIHandler) Predict(w http.ResponseWriter, r *http.Request) {
	loc, days, errs := locationAndDays(r)
	if len(errs) > 0 {
		writeValidation(w, r, errs)
		return
	}

	if h.predictor == nil {
		writeError(w, r, h.logger, "predicting AQI", predict.ErrModelNotLoaded)
		return
	}

	history, err := h.nearby(r.Context(), loc)
	if err != nil {
		writeError(w, r, h.logger, "predicting AQI", err)
		return
	}

	predictions, err := h.predictor.Predict(history, days, h.now())
	if err != nil {
		writeError(w, r, h.logger, "predicting AQI", err)
		return
	}

	out := make([]models.Prediction, 0, len(predictions))
	for _, p := range predictions {
		out = append(out, models.Prediction{
			Date: p.Date.Format(models.DateLayout),
			AQI:  p.AQI,
		})
	}

	response.JSON(w, r, http.StatusOK, models.PredictionResponse{
		Predictions: out,
		BasedOn:     len(history),
	})
}

func (h *AQIHandler) nearby(ctx context.Context, loc location) ([]historical.Record, error) {
	if h.historical == nil {
		return nil, historical.ErrDataFileMissing
	}
	return h.historical.Nearby(ctx, loc.lat, loc.lon)
}

func toHistoricalRecord(rec historical.Record) models.HistoricalRecord {
	return models.HistoricalRecord{
		Date:        rec.Date.Format(models.DateLayout),
		City:        rec.City,
		Lat:         rec.Lat,
		Lon:         rec.Lon,
		AQI:         rec.AQI,
		PM25:        rec.PM25,
		PM10:        rec.PM10,
		CO2:         rec.CO2,
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		WindSpeed:   rec.WindSpeed,
	}
}
