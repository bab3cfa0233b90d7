package osrm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/osrm"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
)

var (
	patna = geo.Coordinate{Lat: 25.59, Lon: 85.13}
	gaya  = geo.Coordinate{Lat: 24.79, Lon: 85.00}
)

func newTestClient(server *httptest.Server) *osrm.Client {
	return osrm.NewClient(osrm.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_Route_SwapsAxisOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/driving/85.13,25.59;85,24.79", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))

		_, _ = w.Write([]byte(`{
			"code": "Ok",
			"routes": [{
				"distance": 98211.4,
				"duration": 7420.1,
				"geometry": {"type": "LineString", "coordinates": [[85.13, 25.59], [85.00, 24.79]]}
			}]
		}`))
	}))
	defer server.Close()

	path, err := newTestClient(server).Route(context.Background(), patna, gaya)
	require.NoError(t, err)
	assert.Equal(t, []geo.Coordinate{{Lat: 25.59, Lon: 85.13}, {Lat: 24.79, Lon: 85.00}}, path)
}

func TestClient_Route_NoRoutes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty routes", http.StatusOK, `{"code": "Ok", "routes": []}`},
		{"NoRoute code", http.StatusBadRequest, `{"code": "NoRoute", "message": "Impossible route between points"}`},
		{"NoSegment code", http.StatusBadRequest, `{"code": "NoSegment", "message": "Could not find a matching segment"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			path, err := newTestClient(server).Route(context.Background(), patna, gaya)
			assert.Nil(t, path)
			assert.ErrorIs(t, err, environment.ErrNoRoute)
		})
	}
}

func TestClient_Route_InvalidQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": "InvalidQuery", "message": "Query string malformed"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Route(context.Background(), patna, gaya)
	assert.ErrorIs(t, err, environment.ErrProviderUnavailable)
	assert.NotErrorIs(t, err, environment.ErrNoRoute)
}

func TestClient_Route_MalformedGeometry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code": "Ok", "routes": [{"geometry": {"coordinates": [[85.13]]}}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Route(context.Background(), patna, gaya)
	assert.ErrorIs(t, err, environment.ErrInvalidResponse)
}

// End to end through the environment service: geocode both names with fake
// candidates, then route through a fake OSRM server.
func TestClient_ComputeRouteEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":{"coordinates":[[85.13,25.59],[85.00,24.79]]}}]}`))
	}))
	defer server.Close()

	svc := environment.NewService(environment.ServiceConfig{
		Geocoder: staticGeocoder{"Patna": patna, "Gaya": gaya},
		Router:   newTestClient(server),
		Logger:   zerolog.Nop(),
	})

	result, err := svc.ComputeRoute(context.Background(), "Patna", "Gaya")
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{25.59, 85.13}, {24.79, 85.00}}, pairs(result.Path))
}

type staticGeocoder map[string]geo.Coordinate

func (g staticGeocoder) Geocode(_ context.Context, query string) (geo.Coordinate, error) {
	c, ok := g[query]
	if !ok {
		return geo.Coordinate{}, environment.ErrLocationNotFound
	}
	return c, nil
}

func pairs(path []geo.Coordinate) [][2]float64 {
	out := make([][2]float64, len(path))
	for i, c := range path {
		out[i] = c.Pair()
	}
	return out
}
