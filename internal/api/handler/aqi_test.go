package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenguard/greenguard/internal/api/handler"
	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/conditions"
	"github.com/greenguard/greenguard/internal/forecast"
	"github.com/greenguard/greenguard/internal/historical"
	"github.com/greenguard/greenguard/internal/predict"
)

var testNow = time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

type fakeConditions struct {
	current  *conditions.Current
	points   []forecast.Point
	err      error
	lastDays int
}

func (f *fakeConditions) Current(_ context.Context, _, _ float64) (*conditions.Current, error) {
	return f.current, f.err
}

func (f *fakeConditions) Forecast(_ context.Context, _, _ float64, days int) ([]forecast.Point, error) {
	f.lastDays = days
	return f.points, f.err
}

type fakeHistorical struct {
	rows []historical.Record
	err  error
}

func (f *fakeHistorical) Nearby(_ context.Context, _, _ float64) ([]historical.Record, error) {
	return f.rows, f.err
}

type fakePredictor struct {
	predictions []predict.Prediction
	err         error
	history     int
	days        int
}

func (f *fakePredictor) Predict(history []historical.Record, daysAhead int, _ time.Time) ([]predict.Prediction, error) {
	f.history = len(history)
	f.days = daysAhead
	return f.predictions, f.err
}

func newAQIHandler(c handler.ConditionsService, h handler.HistoricalService, p handler.Predictor) *handler.AQIHandler {
	return handler.NewAQIHandler(handler.AQIHandlerConfig{
		Conditions: c,
		Historical: h,
		Predictor:  p,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return testNow },
	})
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestCurrentAQI(t *testing.T) {
	c := &fakeConditions{current: &conditions.Current{
		Snapshot: aqi.Snapshot{
			AQI: 118.849, PM25: 23.77, PM10: 35.04, CO2: 401.26,
			Temperature: 30.04, Humidity: 80, WindSpeed: 1.14,
		},
		Status:    "Unhealthy for Sensitive Groups",
		Timestamp: testNow,
	}}
	h := newAQIHandler(c, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/current-aqi?latitude=28.6139&longitude=77.2090", http.NoBody)
	rec := httptest.NewRecorder()
	h.CurrentAQI(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.CurrentAQI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 118.8, body.AQI)
	assert.Equal(t, 23.8, body.PM25)
	assert.Equal(t, 35.0, body.PM10)
	assert.Equal(t, 401.3, body.CO2)
	assert.Equal(t, 30.0, body.Temperature)
	assert.Equal(t, 80.0, body.Humidity)
	assert.Equal(t, 1.1, body.WindSpeed)
	assert.Equal(t, "Unhealthy for Sensitive Groups", body.Status)
	assert.Equal(t, "2026-03-10T08:30:00.000000Z", body.Timestamp)
}

func TestCurrentAQI_Validation(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		fields []string
	}{
		{name: "missing both", query: "", fields: []string{"latitude", "longitude"}},
		{name: "latitude out of range", query: "latitude=91&longitude=0", fields: []string{"latitude"}},
		{name: "longitude not a number", query: "latitude=10&longitude=east", fields: []string{"longitude"}},
		{name: "nan", query: "latitude=NaN&longitude=0", fields: []string{"latitude"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeConditions{}
			h := newAQIHandler(c, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/current-aqi?"+tt.query, http.NoBody)
			rec := httptest.NewRecorder()
			h.CurrentAQI(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			p := decodeProblem(t, rec)
			require.Len(t, p.Errors, len(tt.fields))
			for i, f := range tt.fields {
				assert.Equal(t, f, p.Errors[i].Field)
			}
		})
	}
}

func TestCurrentAQI_UnexpectedError(t *testing.T) {
	h := newAQIHandler(&fakeConditions{err: errors.New("engine exploded")}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/current-aqi?latitude=1&longitude=2", http.NoBody)
	rec := httptest.NewRecorder()
	h.CurrentAQI(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "Error fetching AQI: engine exploded", p.Detail)
	assert.Equal(t, "/api/current-aqi", p.Instance)
}

func TestForecast(t *testing.T) {
	c := &fakeConditions{points: []forecast.Point{
		{Date: testNow.AddDate(0, 0, 1), AQI: 88.04, PM25: 17.66, PM10: 26.41, Temperature: 22.55, Humidity: 61.24, WindSpeed: 4.96},
		{Date: testNow.AddDate(0, 0, 2), AQI: 91.25, PM25: 18.2, PM10: 27.3, Temperature: 23.1, Humidity: 59, WindSpeed: 5},
	}}
	h := newAQIHandler(c, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/forecast?latitude=19.076&longitude=72.8777&days=2", http.NoBody)
	rec := httptest.NewRecorder()
	h.Forecast(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, c.lastDays)

	var body models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Forecast, 2)
	assert.Equal(t, "2026-03-11", body.Forecast[0].Date)
	assert.Equal(t, 88.0, body.Forecast[0].AQI)
	assert.Equal(t, 17.7, body.Forecast[0].PM25)
	assert.Equal(t, 22.6, body.Forecast[0].Temperature)
	assert.Equal(t, "2026-03-12", body.Forecast[1].Date)
}

func TestForecast_DefaultsToSevenDays(t *testing.T) {
	c := &fakeConditions{}
	h := newAQIHandler(c, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/forecast?latitude=1&longitude=1", http.NoBody)
	rec := httptest.NewRecorder()
	h.Forecast(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, c.lastDays)
	assert.JSONEq(t, `{"forecast":[]}`, rec.Body.String())
}

func TestForecast_InvalidDays(t *testing.T) {
	for _, days := range []string{"0", "8", "seven"} {
		t.Run(days, func(t *testing.T) {
			c := &fakeConditions{}
			h := newAQIHandler(c, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/forecast?latitude=1&longitude=1&days="+days, http.NoBody)
			rec := httptest.NewRecorder()
			h.Forecast(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			p := decodeProblem(t, rec)
			require.Len(t, p.Errors, 1)
			assert.Equal(t, "days", p.Errors[0].Field)
			assert.Zero(t, c.lastDays, "service must not be called")
		})
	}
}

func TestHistorical(t *testing.T) {
	hist := &fakeHistorical{rows: []historical.Record{
		{Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), City: "Delhi", Lat: 28.6139, Lon: 77.209, AQI: 182.4, PM25: 91.2, PM10: 136.8, CO2: 412.3, Temperature: 31.2, Humidity: 71, WindSpeed: 2.4},
	}}
	h := newAQIHandler(&fakeConditions{}, hist, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/historical?latitude=28.61&longitude=77.2", http.NoBody)
	rec := httptest.NewRecorder()
	h.Historical(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"date":"2025-09-01","city":"Delhi","lat":28.6139,"lon":77.209,"aqi":182.4,
		"pm25":91.2,"pm10":136.8,"co2":412.3,"temperature":31.2,"humidity":71,"wind_speed":2.4}]}`, rec.Body.String())
}

func TestHistorical_DataFileMissing(t *testing.T) {
	h := newAQIHandler(&fakeConditions{}, &fakeHistorical{err: historical.ErrDataFileMissing}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/historical?latitude=1&longitude=1", http.NoBody)
	rec := httptest.NewRecorder()
	h.Historical(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Data file not found", decodeProblem(t, rec).Detail)
}

func TestPredict(t *testing.T) {
	hist := &fakeHistorical{rows: make([]historical.Record, 3)}
	p := &fakePredictor{predictions: []predict.Prediction{
		{Date: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), AQI: 101.5},
		{Date: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), AQI: 99.2},
	}}
	h := newAQIHandler(&fakeConditions{}, hist, p)

	req := httptest.NewRequest(http.MethodGet, "/api/predict?latitude=17.385&longitude=78.4867&days=2", http.NoBody)
	rec := httptest.NewRecorder()
	h.Predict(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, p.history)
	assert.Equal(t, 2, p.days)
	assert.JSONEq(t, `{"predictions":[{"date":"2026-03-11","aqi":101.5},{"date":"2026-03-12","aqi":99.2}],"based_on":3}`,
		rec.Body.String())
}

func TestPredict_ModelMissing(t *testing.T) {
	tests := []struct {
		name      string
		predictor handler.Predictor
	}{
		{name: "no predictor", predictor: nil},
		{name: "predictor without model", predictor: predict.NewPredictor(nil)},
		{name: "predictor error", predictor: &fakePredictor{err: predict.ErrModelNotLoaded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAQIHandler(&fakeConditions{}, &fakeHistorical{}, tt.predictor)

			req := httptest.NewRequest(http.MethodGet, "/api/predict?latitude=1&longitude=1", http.NoBody)
			rec := httptest.NewRecorder()
			h.Predict(rec, req)

			require.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Model not found. Please train the model first.", decodeProblem(t, rec).Detail)
		})
	}
}
