package environment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
)

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	results map[string]geo.Coordinate
	err     error
}

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (geo.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return geo.Coordinate{}, f.err
	}
	c, ok := f.results[query]
	if !ok {
		return geo.Coordinate{}, environment.ErrLocationNotFound
	}
	return c, nil
}

type fakeRouter struct {
	mu    sync.Mutex
	calls int
	path  []geo.Coordinate
	err   error
}

func (f *fakeRouter) Route(_ context.Context, _, _ geo.Coordinate) ([]geo.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.path, nil
}

func newRouteService(g *fakeGeocoder, r *fakeRouter) *environment.Service {
	return environment.NewService(environment.ServiceConfig{
		Weather:    &fakeWeather{},
		AirQuality: &fakeAirQuality{},
		Geocoder:   g,
		Router:     r,
		Logger:     zerolog.Nop(),
	})
}

func TestComputeRoute_EmptyInputsMakeNoCalls(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
	}{
		{"empty start", "", "Gaya"},
		{"empty end", "Patna", ""},
		{"whitespace only", "   ", "\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGeocoder{}
			r := &fakeRouter{}
			svc := newRouteService(g, r)

			result, err := svc.ComputeRoute(context.Background(), tt.start, tt.end)
			assert.Nil(t, result)

			var routeErr *environment.RouteError
			require.ErrorAs(t, err, &routeErr)
			assert.Equal(t, environment.StageValidation, routeErr.Stage)
			assert.Equal(t, environment.MessageMissingLocation, routeErr.Message)
			assert.ErrorIs(t, err, environment.ErrMissingLocation)

			assert.Empty(t, g.queries)
			assert.Zero(t, r.calls)
		})
	}
}

func TestComputeRoute_LocationNotFound(t *testing.T) {
	g := &fakeGeocoder{results: map[string]geo.Coordinate{
		"Patna": {Lat: 25.59, Lon: 85.13},
	}}
	r := &fakeRouter{}
	svc := newRouteService(g, r)

	result, err := svc.ComputeRoute(context.Background(), "Patna", "Atlantis")
	assert.Nil(t, result)

	var routeErr *environment.RouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, environment.StageGeocode, routeErr.Stage)
	assert.Equal(t, environment.MessageLocationNotFound, routeErr.Message)
	assert.ErrorIs(t, err, environment.ErrLocationNotFound)

	assert.Equal(t, []string{"Patna", "Atlantis"}, g.queries)
	assert.Zero(t, r.calls)
}

func TestComputeRoute_StartNotFoundStopsEarly(t *testing.T) {
	g := &fakeGeocoder{results: map[string]geo.Coordinate{}}
	r := &fakeRouter{}
	svc := newRouteService(g, r)

	_, err := svc.ComputeRoute(context.Background(), "Nowhere", "Gaya")
	assert.ErrorIs(t, err, environment.ErrLocationNotFound)
	assert.Equal(t, []string{"Nowhere"}, g.queries)
}

func TestComputeRoute_NoRoute(t *testing.T) {
	g := &fakeGeocoder{results: map[string]geo.Coordinate{
		"Patna":   {Lat: 25.59, Lon: 85.13},
		"Colombo": {Lat: 6.93, Lon: 79.85},
	}}

	t.Run("router reports no route", func(t *testing.T) {
		svc := newRouteService(g, &fakeRouter{err: environment.ErrNoRoute})

		_, err := svc.ComputeRoute(context.Background(), "Patna", "Colombo")
		var routeErr *environment.RouteError
		require.ErrorAs(t, err, &routeErr)
		assert.Equal(t, environment.StageRoute, routeErr.Stage)
		assert.Equal(t, environment.MessageNoRoute, routeErr.Message)
	})

	t.Run("empty path", func(t *testing.T) {
		svc := newRouteService(g, &fakeRouter{})

		_, err := svc.ComputeRoute(context.Background(), "Patna", "Colombo")
		assert.ErrorIs(t, err, environment.ErrNoRoute)
	})
}

func TestComputeRoute_UnexpectedFailure(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("tls handshake timeout")}
	svc := newRouteService(g, &fakeRouter{})

	_, err := svc.ComputeRoute(context.Background(), "Patna", "Gaya")

	var routeErr *environment.RouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, environment.StageUnexpected, routeErr.Stage)
	assert.Equal(t, environment.MessageRouteFailed, routeErr.Message)
	assert.Contains(t, err.Error(), "tls handshake timeout")
}

func TestComputeRoute_Success(t *testing.T) {
	start := geo.Coordinate{Lat: 25.59, Lon: 85.13}
	end := geo.Coordinate{Lat: 24.79, Lon: 85.00}
	g := &fakeGeocoder{results: map[string]geo.Coordinate{"Patna": start, "Gaya": end}}
	r := &fakeRouter{path: []geo.Coordinate{start, end}}
	svc := newRouteService(g, r)

	result, err := svc.ComputeRoute(context.Background(), "  Patna ", "Gaya")
	require.NoError(t, err)

	assert.Equal(t, start, result.Start)
	assert.Equal(t, end, result.End)
	assert.Equal(t, []geo.Coordinate{start, end}, result.Path)
	assert.Equal(t, 1, r.calls)
}
