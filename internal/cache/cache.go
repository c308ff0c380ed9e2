// Package cache provides the per-source expiring cache used by the upstream
// adapters. Entries are keyed by coordinates rounded to a fixed precision,
// bounded by an LRU, and served stale when a refresh fails.
package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxEntries bounds the number of locations held per source.
	DefaultMaxEntries = 1024

	// DefaultPrecision rounds coordinates to two decimals (about 1 km).
	DefaultPrecision = 2

	lockStripes = 256
)

// ErrInvalidConfig is returned by New when the configuration cannot produce a cache.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// Clock supplies the current time. Tests substitute a fake.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Result describes how GetOrFetch produced its value.
type Result int

const (
	// ResultMiss means fetch was invoked and its value stored.
	ResultMiss Result = iota
	// ResultHit means a fresh entry was served without calling fetch.
	ResultHit
	// ResultStale means fetch failed and an expired entry was served instead.
	ResultStale
)

func (r Result) String() string {
	switch r {
	case ResultHit:
		return "hit"
	case ResultStale:
		return "stale"
	default:
		return "miss"
	}
}

// Key identifies a cache entry.
type Key struct {
	Source string
	Lat    float64
	Lon    float64
}

func (k Key) String() string {
	return k.Source + ":" + strconv.FormatFloat(k.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(k.Lon, 'f', -1, 64)
}

// Entry is a cached value with the time it was fetched.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
}

// FetchFunc retrieves a fresh value from the upstream source.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config holds cache configuration.
type Config struct {
	// Name is the source name, used as part of the key and in logs and metrics.
	Name string

	// TTL is how long an entry is served without refreshing.
	TTL time.Duration

	// MaxEntries bounds the cache; least recently used entries are evicted.
	// Default: DefaultMaxEntries
	MaxEntries int

	// Precision is the number of decimals coordinates are rounded to.
	// Zero or negative selects DefaultPrecision.
	Precision int

	// Clock defaults to the wall clock.
	Clock Clock

	// Metrics is optional.
	Metrics *Metrics

	Logger zerolog.Logger
}

// Cache is an expiring, bounded, per-source cache of upstream readings.
// A key's lookup, fetch and store happen under a lock for that key, so
// concurrent callers for the same location trigger a single upstream call.
type Cache[T any] struct {
	name      string
	ttl       time.Duration
	precision int
	clock     Clock
	entries   *lru.Cache[Key, Entry[T]]
	locks     [lockStripes]sync.Mutex
	metrics   *Metrics
	logger    zerolog.Logger
}

// New creates a cache from cfg.
func New[T any](cfg Config) (*Cache[T], error) {
	if cfg.Name == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("name is required"))
	}
	if cfg.TTL <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("ttl must be positive"))
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Precision <= 0 {
		cfg.Precision = DefaultPrecision
	}
	if cfg.Clock == nil {
		cfg.Clock = ClockFunc(time.Now)
	}

	entries, err := lru.New[Key, Entry[T]](cfg.MaxEntries)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	return &Cache[T]{
		name:      cfg.Name,
		ttl:       cfg.TTL,
		precision: cfg.Precision,
		clock:     cfg.Clock,
		entries:   entries,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("cache", cfg.Name).Logger(),
	}, nil
}

// Name returns the source name.
func (c *Cache[T]) Name() string {
	return c.name
}

// TTL returns the freshness window.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Key builds the rounded key for a coordinate pair.
func (c *Cache[T]) Key(lat, lon float64) Key {
	return Key{
		Source: c.name,
		Lat:    Round(lat, c.precision),
		Lon:    Round(lon, c.precision),
	}
}

// GetOrFetch returns the fresh entry for (lat, lon) when one exists. Otherwise
// it calls fetch and stores the value. When fetch fails and any previous entry
// exists, that entry is served regardless of age; with no entry the fetch error
// is returned so the caller can substitute its own fallback.
func (c *Cache[T]) GetOrFetch(ctx context.Context, lat, lon float64, fetch FetchFunc[T]) (T, Result, error) {
	key := c.Key(lat, lon)

	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	entry, ok := c.entries.Get(key)
	if ok && c.fresh(entry) {
		c.metrics.RecordLookup(ctx, c.name, ResultHit)
		return entry.Value, ResultHit, nil
	}

	start := c.clock.Now()
	value, err := fetch(ctx)
	c.metrics.RecordFetch(ctx, c.name, c.clock.Now().Sub(start), err)
	if err != nil {
		if ok {
			c.logger.Warn().
				Err(err).
				Str("key", key.String()).
				Dur("age", c.clock.Now().Sub(entry.FetchedAt)).
				Msg("upstream fetch failed, serving stale entry")
			c.metrics.RecordLookup(ctx, c.name, ResultStale)
			return entry.Value, ResultStale, nil
		}
		c.metrics.RecordLookup(ctx, c.name, ResultMiss)
		var zero T
		return zero, ResultMiss, err
	}

	c.entries.Add(key, Entry[T]{Value: value, FetchedAt: c.clock.Now()})
	c.metrics.RecordLookup(ctx, c.name, ResultMiss)

	return value, ResultMiss, nil
}

// Peek returns the entry for (lat, lon) without fetching or updating recency.
// The result is ResultHit for a fresh entry and ResultStale for an expired one.
func (c *Cache[T]) Peek(lat, lon float64) (T, Result, bool) {
	key := c.Key(lat, lon)

	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	entry, ok := c.entries.Peek(key)
	if !ok {
		var zero T
		return zero, ResultMiss, false
	}
	if c.fresh(entry) {
		return entry.Value, ResultHit, true
	}
	return entry.Value, ResultStale, true
}

// Len returns the number of entries held.
func (c *Cache[T]) Len() int {
	return c.entries.Len()
}

// Purge removes all entries.
func (c *Cache[T]) Purge() {
	c.entries.Purge()
}

func (c *Cache[T]) fresh(entry Entry[T]) bool {
	return c.clock.Now().Sub(entry.FetchedAt) < c.ttl
}

func (c *Cache[T]) lockFor(key Key) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return &c.locks[h.Sum32()%lockStripes]
}

// Round rounds v to the given number of decimals. Negative zero becomes zero
// so that keys on either side of the equator or meridian compare equal.
func Round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}
