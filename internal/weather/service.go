package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenguard/greenguard/internal/cache"
	"github.com/greenguard/greenguard/internal/provider"
)

const (
	// CacheName identifies the weather cache in keys, logs and metrics.
	CacheName = "weather"

	// DefaultCacheTTL is how long a reading is served without refreshing.
	DefaultCacheTTL = 300 * time.Second
)

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Fetcher is the upstream provider. When nil (no credential configured)
	// the static mock is served and the cache is never touched.
	Fetcher Fetcher

	// Cache holds readings per rounded location. When nil a default cache
	// with DefaultCacheTTL is created.
	Cache *cache.Cache[Reading]

	// Metrics counts fallback substitutions. Optional.
	Metrics *cache.Metrics

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service provides weather readings that never fail: fresh cache, then
// upstream, then a stale entry, then the static mock.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache[Reading]
	metrics *cache.Metrics
	logger  zerolog.Logger
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) (*Service, error) {
	c := cfg.Cache
	if c == nil {
		var err error
		c, err = cache.New[Reading](cache.Config{
			Name:    CacheName,
			TTL:     DefaultCacheTTL,
			Metrics: cfg.Metrics,
			Logger:  cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		fetcher: cfg.Fetcher,
		cache:   c,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Configured reports whether an upstream provider is available.
func (s *Service) Configured() bool {
	return s.fetcher != nil
}

// Current returns the reading for a location and where it came from.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*Reading, provider.Source) {
	if s.fetcher == nil {
		m := Mock()
		return &m, provider.SourceFallback
	}

	reading, result, err := s.cache.GetOrFetch(ctx, lat, lon, func(ctx context.Context) (Reading, error) {
		r, err := s.fetcher.Fetch(ctx, lat, lon)
		if err != nil {
			return Reading{}, err
		}
		return *r, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			m := Mock()
			return &m, provider.SourceFallback
		}
		s.logger.Error().
			Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("failed to fetch weather, using mock reading")
		s.metrics.RecordFallback(ctx, CacheName)
		m := Mock()
		return &m, provider.SourceFallback
	}

	return &reading, provider.SourceFor(result)
}

// Cached returns the cached reading for a location without contacting the
// provider, falling back to the mock when nothing is cached.
func (s *Service) Cached(_ context.Context, lat, lon float64) (*Reading, provider.Source) {
	if s.fetcher != nil {
		if reading, result, ok := s.cache.Peek(lat, lon); ok {
			return &reading, provider.SourceFor(result)
		}
	}
	m := Mock()
	return &m, provider.SourceFallback
}

// CacheLen returns the number of cached locations.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}
