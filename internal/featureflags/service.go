package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long flags are served from memory before the
// repository is consulted again.
const DefaultCacheTTL = time.Minute

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration
	DefaultFlags map[string]*Flag

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service provides feature flag evaluation with caching and fallback to defaults.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag
	now          func() time.Time

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service. A nil repository is
// replaced by an in-memory one.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:         repo,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		now:          now,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key, preferring the in-memory cache.
// Returns nil for unknown keys without a default.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	if defaultFlag, ok := s.defaultFlags[key]; ok {
		return defaultFlag
	}

	return nil
}

// GetAllFlags returns stored flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = flags
	s.cacheExpiry = s.now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// SetFlags stores flags and refreshes the cache with them.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := s.now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	if s.cacheExpiry.Before(now) {
		s.cacheExpiry = now.Add(s.cacheTTL)
	}
	s.mu.Unlock()

	s.logger.Info().Int("count", len(flags)).Msg("feature flags updated")
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// IsCachedOnlyUpstream reports whether upstream providers must not be called.
func (s *Service) IsCachedOnlyUpstream(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCachedOnlyUpstream)
}

// IsRealtimeAlertsDisabled reports whether realtime frames omit alerts.
func (s *Service) IsRealtimeAlertsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableRealtimeAlerts)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	now := s.now()
	if s.cacheExpiry.Before(now) {
		s.cacheExpiry = now.Add(s.cacheTTL)
	}
}
