package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/atmosguard/atmosguard/internal/telemetry"

// ProviderMetrics records upstream calls (Open-Meteo, Nominatim, OSRM) and
// geocode cache lookups. A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	duration  metric.Float64Histogram
	requests  metric.Int64Counter
	cacheHit  metric.Int64Counter
	cacheMiss metric.Int64Counter
}

// NewProviderMetrics registers the instruments on the global meter provider,
// so it must run after Init to export anything.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(providerMeterName)
	m := &ProviderMetrics{}

	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}

	var err error
	m.duration, err = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Upstream call latency, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	errs = append(errs, err)
	m.requests = counter("provider.request.total", "Upstream calls by outcome", "{request}")
	m.cacheHit = counter("provider.cache.hit", "Lookups answered from cache", "{hit}")
	m.cacheMiss = counter("provider.cache.miss", "Lookups that went upstream", "{miss}")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest records one finished upstream call.
func (m *ProviderMetrics) RecordRequest(provider, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(append(providerAttrs(provider, operation),
		attribute.Bool("error", err != nil))...)

	// The caller's context may already be cancelled.
	ctx := context.Background()
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.requests.Add(ctx, 1, attrs)
}

func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	if m != nil {
		m.cacheHit.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
	}
}

func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	if m != nil {
		m.cacheMiss.Add(context.Background(), 1, metric.WithAttributes(providerAttrs(provider, operation)...))
	}
}

func providerAttrs(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}
