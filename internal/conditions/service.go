// Package conditions blends weather and air-quality readings into the
// adjusted snapshots and forecasts served to clients.
package conditions

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/greenguard/greenguard/internal/airquality"
	"github.com/greenguard/greenguard/internal/aqi"
	"github.com/greenguard/greenguard/internal/forecast"
	"github.com/greenguard/greenguard/internal/provider"
	"github.com/greenguard/greenguard/internal/weather"
)

// AirQualitySource provides air-quality readings that never fail.
type AirQualitySource interface {
	Current(ctx context.Context, lat, lon float64) (*airquality.Reading, provider.Source)
	Cached(ctx context.Context, lat, lon float64) (*airquality.Reading, provider.Source)
}

// WeatherSource provides weather readings that never fail.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Reading, provider.Source)
	Cached(ctx context.Context, lat, lon float64) (*weather.Reading, provider.Source)
}

// FlagSource reports runtime switches affecting upstream access.
type FlagSource interface {
	IsCachedOnlyUpstream(ctx context.Context) bool
}

// Sources records the provenance of each reading in a blend.
type Sources struct {
	AirQuality provider.Source `json:"air_quality"`
	Weather    provider.Source `json:"weather"`
}

// Readings are the raw inputs for one location.
type Readings struct {
	AirQuality airquality.Reading
	Weather    weather.Reading
	Sources    Sources
}

// Current is an adjusted snapshot with its category.
type Current struct {
	aqi.Snapshot
	Status    string
	Timestamp time.Time
	Sources   Sources
}

// ServiceConfig holds configuration for the conditions service.
type ServiceConfig struct {
	AirQuality AirQualitySource
	Weather    WeatherSource
	Engine     *aqi.Engine
	Flags      FlagSource // optional
	Logger     zerolog.Logger

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service composes the providers, the adjustment engine and the forecast generator.
type Service struct {
	airQuality AirQualitySource
	weather    WeatherSource
	engine     *aqi.Engine
	forecaster *forecast.Generator
	flags      FlagSource
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService creates a new conditions service.
func NewService(cfg ServiceConfig) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = aqi.NewEngine(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		airQuality: cfg.AirQuality,
		weather:    cfg.Weather,
		engine:     engine,
		forecaster: forecast.NewGenerator(engine),
		flags:      cfg.Flags,
		logger:     cfg.Logger,
		now:        now,
	}
}

// Readings fetches weather and air quality for a location concurrently.
// The providers absorb upstream failures, so the only error is a done context.
func (s *Service) Readings(ctx context.Context, lat, lon float64) (*Readings, error) {
	cachedOnly := s.flags != nil && s.flags.IsCachedOnlyUpstream(ctx)

	var (
		aq       *airquality.Reading
		aqSource provider.Source
		wx       *weather.Reading
		wxSource provider.Source
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cachedOnly {
			aq, aqSource = s.airQuality.Cached(gctx, lat, lon)
		} else {
			aq, aqSource = s.airQuality.Current(gctx, lat, lon)
		}
		return nil
	})
	g.Go(func() error {
		if cachedOnly {
			wx, wxSource = s.weather.Cached(gctx, lat, lon)
		} else {
			wx, wxSource = s.weather.Current(gctx, lat, lon)
		}
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("air_quality_source", string(aqSource)).
		Str("weather_source", string(wxSource)).
		Bool("cached_only", cachedOnly).
		Msg("readings resolved")

	return &Readings{
		AirQuality: *aq,
		Weather:    *wx,
		Sources:    Sources{AirQuality: aqSource, Weather: wxSource},
	}, nil
}

// Current returns the weather-adjusted snapshot for a location.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*Current, error) {
	r, err := s.Readings(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return s.Adjust(r), nil
}

// Adjust runs the engine over already fetched readings. Status is the
// category of the AQI as displayed, rounded to one decimal.
func (s *Service) Adjust(r *Readings) *Current {
	snap := s.engine.Adjust(r.AirQuality.AQI, r.Weather.Conditions())
	return &Current{
		Snapshot:  snap,
		Status:    aqi.Category(aqi.Round(snap.AQI, 1)),
		Timestamp: s.now(),
		Sources:   r.Sources,
	}
}

// Forecast returns a days-long forecast seeded from the current readings.
func (s *Service) Forecast(ctx context.Context, lat, lon float64, days int) ([]forecast.Point, error) {
	if days < 1 || days > forecast.MaxDays {
		return nil, forecast.ErrInvalidDays
	}

	r, err := s.Readings(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	return s.forecaster.Generate(r.AirQuality.AQI, r.Weather.Conditions(), days, s.now())
}
