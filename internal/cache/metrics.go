package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/greenguard/greenguard/internal/cache"

// Metrics holds instruments for cache lookups and the upstream fetches behind them.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookupTotal   metric.Int64Counter
	fetchDuration metric.Float64Histogram
	fallbackTotal metric.Int64Counter
}

// NewMetrics creates cache metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	lookupTotal, err := meter.Int64Counter(
		"cache.lookup.total",
		metric.WithDescription("Cache lookups by result (hit, miss, stale)"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of upstream provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fallbackTotal, err := meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Synthetic readings substituted after upstream and cache both failed"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lookupTotal:   lookupTotal,
		fetchDuration: fetchDuration,
		fallbackTotal: fallbackTotal,
	}, nil
}

// RecordLookup counts a lookup outcome for the named cache.
func (m *Metrics) RecordLookup(ctx context.Context, name string, result Result) {
	if m == nil {
		return
	}
	m.lookupTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("cache.name", name),
		attribute.String("cache.result", result.String()),
	))
}

// RecordFetch records an upstream call made on behalf of the named cache.
func (m *Metrics) RecordFetch(ctx context.Context, name string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("provider.name", name)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.fetchDuration.Record(context.WithoutCancel(ctx), duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFallback counts a synthetic reading substituted for the named source.
func (m *Metrics) RecordFallback(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.fallbackTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("provider.name", name),
	))
}
