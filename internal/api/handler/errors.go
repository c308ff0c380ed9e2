package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/api/middleware"
	"github.com/greenguard/greenguard/internal/api/models"
	"github.com/greenguard/greenguard/internal/api/response"
	"github.com/greenguard/greenguard/internal/forecast"
	"github.com/greenguard/greenguard/internal/historical"
	"github.com/greenguard/greenguard/internal/predict"
)

// Detail messages for missing artifacts.
const (
	detailModelMissing = "Model not found. Please train the model first."
	detailDataMissing  = "Data file not found"
)

// writeError maps a service error to a Problem response. Unexpected errors
// become a 500 carrying the error text, prefixed by action.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, action string, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidDays), errors.Is(err, predict.ErrInvalidHorizon):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "days", Message: err.Error(), Code: "OUT_OF_RANGE"},
		})
	case errors.Is(err, predict.ErrModelNotLoaded):
		response.NotFound(w, r, detailModelMissing)
	case errors.Is(err, historical.ErrDataFileMissing):
		response.NotFound(w, r, detailDataMissing)
	default:
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg(action + " failed")
		response.InternalError(w, r, fmt.Sprintf("Error %s: %v", action, err))
	}
}

func writeValidation(w http.ResponseWriter, r *http.Request, errs []models.FieldError) {
	response.BadRequest(w, r, "invalid request parameters", errs)
}
