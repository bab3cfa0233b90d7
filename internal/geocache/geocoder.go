package geocache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/telemetry"
)

const cacheOperation = "geocode"

// CachingGeocoder serves geocode lookups from a Repository and falls back to
// the wrapped Geocoder on a miss. Cache failures never fail a lookup.
type CachingGeocoder struct {
	next     environment.Geocoder
	repo     Repository
	provider string
	metrics  *telemetry.ProviderMetrics
	logger   zerolog.Logger
}

// Option configures a CachingGeocoder.
type Option func(*CachingGeocoder)

// WithMetrics records cache hits and misses.
func WithMetrics(m *telemetry.ProviderMetrics) Option {
	return func(g *CachingGeocoder) { g.metrics = m }
}

// WithLogger sets the logger used for cache errors.
func WithLogger(l zerolog.Logger) Option {
	return func(g *CachingGeocoder) { g.logger = l }
}

// WithProviderName sets the provider label used for metrics.
func WithProviderName(name string) Option {
	return func(g *CachingGeocoder) { g.provider = name }
}

// NewCachingGeocoder wraps next with repo.
func NewCachingGeocoder(next environment.Geocoder, repo Repository, opts ...Option) *CachingGeocoder {
	g := &CachingGeocoder{
		next:     next,
		repo:     repo,
		provider: "nominatim",
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode implements environment.Geocoder.
func (g *CachingGeocoder) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	key := Normalize(query)

	coord, ok, err := g.repo.Get(ctx, key)
	switch {
	case err != nil:
		g.logger.Warn().Err(err).Str("query", key).Msg("geocode cache read failed")
	case ok:
		g.metrics.RecordCacheHit(g.provider, cacheOperation)
		return coord, nil
	}
	g.metrics.RecordCacheMiss(g.provider, cacheOperation)

	coord, err = g.next.Geocode(ctx, query)
	if err != nil {
		return geo.Coordinate{}, err
	}

	if err := g.repo.Put(ctx, key, coord); err != nil {
		g.logger.Warn().Err(err).Str("query", key).Msg("geocode cache write failed")
	}
	return coord, nil
}

// Invalidate clears the cache.
func (g *CachingGeocoder) Invalidate(ctx context.Context) (int64, error) {
	n, err := g.repo.Clear(ctx)
	if err != nil {
		return 0, err
	}
	g.logger.Info().Int64("entries", n).Msg("geocode cache cleared")
	return n, nil
}
