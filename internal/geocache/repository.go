// Package geocache caches place-name lookups in front of the geocoding provider.
//
// Nominatim's usage policy asks clients to cache results; repeated route
// requests for the same places are common, so only positive results are kept.
package geocache

import (
	"context"
	"strings"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// Repository stores geocode results keyed by normalised query.
type Repository interface {
	// Get returns the cached coordinate and whether one was found.
	Get(ctx context.Context, query string) (geo.Coordinate, bool, error)

	// Put stores or replaces the coordinate for query.
	Put(ctx context.Context, query string, coord geo.Coordinate) error

	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
}

// Normalize returns the cache key for a free-text query: trimmed, lower-cased,
// with runs of whitespace collapsed to one space.
func Normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
