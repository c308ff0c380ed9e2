package handler

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/forecast"
)

// Default streaming location when the client sends none.
const (
	DefaultLatitude  = 40.7128
	DefaultLongitude = -74.006
)

// DefaultDays is the forecast and prediction horizon when days is omitted.
const DefaultDays = forecast.MaxDays

// location is a validated latitude/longitude pair.
type location struct {
	lat float64
	lon float64
}

// parseLocation reads latitude and longitude. When fallback is nil both are
// required.
func parseLocation(q url.Values, fallback *location) (location, []models.FieldError) {
	var loc location
	var errs []models.FieldError

	var latDef, lonDef *float64
	if fallback != nil {
		latDef, lonDef = &fallback.lat, &fallback.lon
	}

	var fe *models.FieldError
	if loc.lat, fe = parseFloat(q, "latitude", -90, 90, latDef); fe != nil {
		errs = append(errs, *fe)
	}
	if loc.lon, fe = parseFloat(q, "longitude", -180, 180, lonDef); fe != nil {
		errs = append(errs, *fe)
	}
	return loc, errs
}

func parseFloat(q url.Values, name string, lo, hi float64, def *float64) (float64, *models.FieldError) {
	raw := q.Get(name)
	if raw == "" {
		if def != nil {
			return *def, nil
		}
		return 0, &models.FieldError{Field: name, Message: "is required", Code: "REQUIRED"}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.FieldError{Field: name, Message: "must be a number", Code: "INVALID"}
	}
	if v < lo || v > hi {
		return 0, &models.FieldError{
			Field:   name,
			Message: fmt.Sprintf("must be between %g and %g", lo, hi),
			Code:    "OUT_OF_RANGE",
		}
	}
	return v, nil
}

// parseDays reads the days parameter, defaulting to DefaultDays.
func parseDays(q url.Values) (int, *models.FieldError) {
	raw := q.Get("days")
	if raw == "" {
		return DefaultDays, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.FieldError{Field: "days", Message: "must be an integer", Code: "INVALID"}
	}
	if days < 1 || days > forecast.MaxDays {
		return 0, &models.FieldError{
			Field:   "days",
			Message: fmt.Sprintf("must be between 1 and %d", forecast.MaxDays),
			Code:    "OUT_OF_RANGE",
		}
	}
	return days, nil
}

// locationAndDays parses both, collecting every field error.
func locationAndDays(r *http.Request) (location, int, []models.FieldError) {
	q := r.URL.Query()
	loc, errs := parseLocation(q, nil)
	days, fe := parseDays(q)
	if fe != nil {
		errs = append(errs, *fe)
	}
	return loc, days, errs
}
