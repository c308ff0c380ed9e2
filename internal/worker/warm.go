package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/airquality"
	"github.com/greenguard/greenguard/internal/provider"
	"github.com/greenguard/greenguard/internal/weather"
)

// AirQualityService is the air-quality lookup the warm job drives.
type AirQualityService interface {
	Current(ctx context.Context, lat, lon float64) (*airquality.Reading, provider.Source)
}

// WeatherService is the weather lookup the warm job drives. Without a
// configured provider every lookup is a mock, so there is nothing to warm.
type WeatherService interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Reading, provider.Source)
	Configured() bool
}

// WarmJob refreshes cache entries for a fixed set of locations. Lookups go
// through the normal services, so entries still fresh are left alone.
type WarmJob struct {
	config WarmConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	airQuality AirQualityService
	weather    WeatherService

	mu      sync.Mutex
	metrics WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	TotalRuns       int64
	Refreshed       int64
	AlreadyFresh    int64
	Failed          int64
	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config     WarmConfig
	Logger     zerolog.Logger
	AirQuality AirQualityService
	Weather    WeatherService
}

// NewWarmJob creates a new cache warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultWarmTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultWarmConfig().Timeout
	}

	wx := cfg.Weather
	if wx != nil && !wx.Configured() {
		if config.WarmWeather {
			cfg.Logger.Info().Msg("weather provider not configured, skipping weather warming")
		}
		wx = nil
	}

	return &WarmJob{
		config:     config,
		logger:     cfg.Logger,
		airQuality: cfg.AirQuality,
		weather:    wx,
	}
}

// WarmResult contains the outcome of one run.
type WarmResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalPoints  int
	Refreshed    int
	AlreadyFresh int
	Failed       int
	Errors       []WarmError
}

// WarmError records a lookup that fell back to stale or synthetic data.
type WarmError struct {
	Provider string
	Point    Point
	Source   provider.Source
}

// Run warms every configured point and returns a summary.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	startTime := time.Now()
	result := &WarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm job")

	points := j.config.AllPoints()
	pointsChan := make(chan Point, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		result.Refreshed += pr.refreshed
		result.AlreadyFresh += pr.fresh
		result.Failed += len(pr.errors)
		result.Errors = append(result.Errors, pr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("already_fresh", result.AlreadyFresh).
		Int("failed", result.Failed).
		Msg("cache warm job completed")

	return result
}

type pointResult struct {
	refreshed int
	fresh     int
	errors    []WarmError
}

func (j *WarmJob) warmWorker(ctx context.Context, points <-chan Point, results chan<- pointResult) {
	for point := range points {
		if ctx.Err() != nil {
			return
		}
		results <- j.warmPoint(ctx, point)
	}
}

func (j *WarmJob) warmPoint(ctx context.Context, point Point) pointResult {
	var result pointResult

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	record := func(name string, source provider.Source) {
		switch source {
		case provider.SourceLive:
			result.refreshed++
		case provider.SourceCache:
			result.fresh++
		default:
			result.errors = append(result.errors, WarmError{Provider: name, Point: point, Source: source})
		}
	}

	if j.config.WarmAirQuality && j.airQuality != nil {
		_, source := j.airQuality.Current(pointCtx, point.Lat, point.Lon)
		record(airquality.CacheName, source)
	}

	if j.config.WarmWeather && j.weather != nil {
		_, source := j.weather.Current(pointCtx, point.Lat, point.Lon)
		record(weather.CacheName, source)
	}

	return result
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.Refreshed += int64(result.Refreshed)
	j.metrics.AlreadyFresh += int64(result.AlreadyFresh)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// Metrics returns a copy of the current metrics.
func (j *WarmJob) Metrics() WarmMetrics {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.metrics
}

// MetricsSnapshot returns the metrics as a map for status endpoints.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.Metrics()
	snapshot := map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"refreshed":         m.Refreshed,
		"already_fresh":     m.AlreadyFresh,
		"failed":            m.Failed,
		"last_run_duration": m.LastRunDuration.String(),
	}
	if !m.LastRunAt.IsZero() {
		snapshot["last_run_at"] = m.LastRunAt
	}
	return snapshot
}
