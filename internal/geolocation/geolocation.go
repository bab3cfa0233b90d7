// Package geolocation resolves the coordinate the dashboard should centre on.
package geolocation

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// DefaultCoordinate is used whenever no device position is available (Bihta, Patna district).
var DefaultCoordinate = geo.Coordinate{Lat: 25.5358, Lon: 84.8512}

// ErrUnavailable is returned by a Locator that has no position to report.
var ErrUnavailable = errors.New("device position unavailable")

// Locator reports a device position.
type Locator interface {
	Locate(ctx context.Context) (geo.Coordinate, error)
}

// HintLocator reports a position the browser obtained itself and forwarded
// with the request. A nil hint means the capability is absent.
type HintLocator struct {
	Hint *geo.Coordinate
}

// Locate returns the hint, or ErrUnavailable when there is none.
func (l HintLocator) Locate(_ context.Context) (geo.Coordinate, error) {
	if l.Hint == nil {
		return geo.Coordinate{}, ErrUnavailable
	}
	return *l.Hint, nil
}

// HintFromRequest reads lat/lon query parameters. Missing or unparsable
// parameters produce an empty hint.
func HintFromRequest(r *http.Request) HintLocator {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" || lonStr == "" {
		return HintLocator{}
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return HintLocator{}
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return HintLocator{}
	}

	return HintLocator{Hint: &geo.Coordinate{Lat: lat, Lon: lon}}
}

// Geolocator turns a Locator result into a usable coordinate.
type Geolocator struct {
	logger zerolog.Logger
}

// New creates a Geolocator.
func New(logger zerolog.Logger) *Geolocator {
	return &Geolocator{logger: logger}
}

// Resolve makes a single attempt to locate the device. It never fails: any
// error, a nil locator or a non-finite position yields DefaultCoordinate.
func (g *Geolocator) Resolve(ctx context.Context, locator Locator) geo.Coordinate {
	if locator == nil {
		return DefaultCoordinate
	}

	coord, err := locator.Locate(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("using default coordinate")
		return DefaultCoordinate
	}
	if !coord.IsFinite() {
		g.logger.Debug().
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Msg("non-finite device position, using default coordinate")
		return DefaultCoordinate
	}

	return coord
}
