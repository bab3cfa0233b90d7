package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/api"
	"github.com/atmosguard/atmosguard/internal/api/handler"
	"github.com/atmosguard/atmosguard/internal/api/models"
	"github.com/atmosguard/atmosguard/internal/auth"
	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/geocache"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
	"github.com/atmosguard/atmosguard/internal/regional"
)

const testSigningKey = "test-operator-key"

var (
	patna = geo.Coordinate{Lat: 25.5941, Lon: 85.1376}
	bihta = geo.Coordinate{Lat: 25.5358, Lon: 84.8512}
)

// fakeEnvironment stands in for *environment.Service.
type fakeEnvironment struct {
	mu          sync.Mutex
	aqi         int
	overviewErr error
	pointErr    error
	heatErr     error
	routeErr    error

	// routeGate, when set, holds ComputeRoute until it is closed.
	routeGate    chan struct{}
	routeStarted chan struct{}
}

func (f *fakeEnvironment) FetchOverview(_ context.Context, _ geo.Coordinate) (*environment.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.overviewErr != nil {
		return nil, f.overviewErr
	}
	aqi, temp, humidity, pm25 := f.aqi, 31, 62, 38.5
	return &environment.Reading{
		Temperature: &temp,
		Humidity:    &humidity,
		PM25:        &pm25,
		AQI:         &aqi,
		Status:      environment.Classify(aqi),
	}, nil
}

func (f *fakeEnvironment) FetchPointDetail(_ context.Context, _ geo.Coordinate) (*environment.StationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pointErr != nil {
		return nil, f.pointErr
	}
	aqi, pm10 := f.aqi, 80.0
	return &environment.StationSnapshot{
		Name:    "Selected Location",
		AQI:     &aqi,
		Status:  environment.Classify(aqi),
		Message: "Live data",
		PM10:    &pm10,
	}, nil
}

func (f *fakeEnvironment) FetchHeatDetail(_ context.Context, _ geo.Coordinate) (*environment.HeatSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heatErr != nil {
		return nil, f.heatErr
	}
	return &environment.HeatSnapshot{
		Name:               "Selected Zone",
		Temperature:        38,
		SurfaceTemperature: 46,
		Humidity:           40,
		Status:             environment.ThermalElevatedStress,
	}, nil
}

func (f *fakeEnvironment) ComputeRoute(ctx context.Context, _, _ string) (*environment.RouteResult, error) {
	f.mu.Lock()
	gate, started, routeErr := f.routeGate, f.routeStarted, f.routeErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if routeErr != nil {
		return nil, routeErr
	}
	return &environment.RouteResult{
		Start: patna,
		End:   bihta,
		Path:  []geo.Coordinate{patna, {Lat: 25.57, Lon: 85.0}, bihta},
	}, nil
}

func (f *fakeEnvironment) set(fn func(*fakeEnvironment)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeGeocoder struct {
	calls int
}

func (g *fakeGeocoder) Geocode(_ context.Context, _ string) (geo.Coordinate, error) {
	g.calls++
	return patna, nil
}

type testServer struct {
	router   http.Handler
	env      *fakeEnvironment
	store    *dashboard.Store
	regions  *regional.InMemoryRepository
	geocoder *fakeGeocoder
	cache    *geocache.CachingGeocoder
	tokens   *auth.TokenService
}

func newTestServer(t *testing.T, signingKey string, checks ...handler.DependencyCheck) *testServer {
	t.Helper()

	env := &fakeEnvironment{aqi: 120}
	store := dashboard.NewStore(dashboard.StoreConfig{
		Session: dashboard.Config{
			Fetcher:      env,
			Logger:       zerolog.Nop(),
			PlayInterval: time.Hour,
		},
	})
	t.Cleanup(store.Close)

	geocoder := &fakeGeocoder{}
	cache := geocache.NewCachingGeocoder(geocoder, geocache.NewInMemoryRepository())
	regions := regional.NewInMemoryRepository()
	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: signingKey})

	router := api.NewRouter(api.RouterConfig{
		Version:      "1.0.0-test",
		BuildTime:    "2026-05-01T00:00:00Z",
		Logger:       zerolog.Nop(),
		Environment:  env,
		Sessions:     store,
		Regions:      regions,
		GeocodeCache: cache,
		Tokens:       tokens,
		Registry:     resilience.NewRegistry(),
		Checks:       checks,
	})

	return &testServer{
		router:   router,
		env:      env,
		store:    store,
		regions:  regions,
		geocoder: geocoder,
		cache:    cache,
		tokens:   tokens,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) operatorToken(t *testing.T) string {
	t.Helper()
	token, _, err := s.tokens.Issue("ops-alice", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouter_HealthCheck(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	health := decode[models.Health](t, w)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.0.0-test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		s := newTestServer(t, testSigningKey, handler.DependencyCheck{
			Name:  "database",
			Check: func(context.Context) error { return nil },
		})

		w := s.do(t, http.MethodGet, "/v1/ops/ready", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, w).Status)
	})

	t.Run("dependency down", func(t *testing.T) {
		s := newTestServer(t, testSigningKey, handler.DependencyCheck{
			Name:  "database",
			Check: func(context.Context) error { return errors.New("connection refused") },
		})

		w := s.do(t, http.MethodGet, "/v1/ops/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		health := decode[models.Health](t, w)
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Contains(t, health.Details, "database")
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/ops/status", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/v1/ops/status", nil, "Authorization", s.operatorToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	status := decode[models.SystemStatus](t, w)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Empty(t, status.Providers)
}

func TestRouter_EnvironmentOverview(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/environment/overview?lat=25.5941&lon=85.1376", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.OverviewResponse](t, w)
	assert.InDelta(t, patna.Lat, resp.Position.Lat, 1e-9)
	require.NotNil(t, resp.Reading.AQI)
	assert.Equal(t, 120, *resp.Reading.AQI)
	assert.Equal(t, string(environment.StatusUnhealthySensitive), resp.Reading.Status)
	assert.Equal(t, "Unhealthy for Sensitive", resp.Reading.StatusLabel)
}

func TestRouter_EnvironmentOverview_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, testSigningKey)
	s.env.set(func(f *fakeEnvironment) { f.overviewErr = environment.ErrProviderUnavailable })

	w := s.do(t, http.MethodGet, "/v1/environment/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.OverviewResponse](t, w)
	assert.Equal(t, string(environment.StatusLoading), resp.Reading.Status)
	assert.Equal(t, "Loading...", resp.Reading.StatusLabel)
	assert.Nil(t, resp.Reading.AQI)
	// No hint falls back to the default position.
	assert.InDelta(t, bihta.Lat, resp.Position.Lat, 1e-9)
}

func TestRouter_EnvironmentPointAndHeat(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/environment/point?lat=25.6&lon=85.1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	station := decode[models.StationSnapshot](t, w)
	assert.Equal(t, "Selected Location", station.Name)
	assert.Equal(t, 120, *station.AQI)

	w = s.do(t, http.MethodGet, "/v1/environment/heat?lat=25.6&lon=85.1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	heat := decode[models.HeatSnapshot](t, w)
	assert.Equal(t, 46, heat.SurfaceTemperature)
	assert.Equal(t, "Elevated Stress", heat.StatusLabel)
}

func TestRouter_EnvironmentPoint_Errors(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/environment/point?lat=25.6", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	s.env.set(func(f *fakeEnvironment) { f.pointErr = environment.ErrProviderUnavailable })
	w = s.do(t, http.MethodGet, "/v1/environment/point?lat=25.6&lon=85.1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.env.set(func(f *fakeEnvironment) { f.heatErr = environment.ErrProviderUnavailable })
	w = s.do(t, http.MethodGet, "/v1/environment/heat?lat=25.6&lon=85.1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_ComputeRoute(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodPost, "/v1/routes:compute", models.RouteComputeRequest{Start: "Patna", End: "Bihta"})
	require.Equal(t, http.StatusOK, w.Code)

	route := decode[models.RouteResponse](t, w)
	assert.Len(t, route.Path, 3)
	assert.NotEmpty(t, route.Polyline)
	assert.Positive(t, route.DistanceMeters)
	assert.InDelta(t, patna.Lon, route.Start.Lon, 1e-9)
}

func TestRouter_ComputeRoute_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "validation",
			err:        &environment.RouteError{Stage: environment.StageValidation, Message: environment.MessageMissingLocation},
			wantStatus: http.StatusBadRequest,
			wantDetail: environment.MessageMissingLocation,
		},
		{
			name:       "geocode",
			err:        &environment.RouteError{Stage: environment.StageGeocode, Message: environment.MessageLocationNotFound},
			wantStatus: http.StatusNotFound,
			wantDetail: environment.MessageLocationNotFound,
		},
		{
			name:       "no route",
			err:        &environment.RouteError{Stage: environment.StageRoute, Message: environment.MessageNoRoute},
			wantStatus: http.StatusNotFound,
			wantDetail: environment.MessageNoRoute,
		},
		{
			name:       "unexpected",
			err:        &environment.RouteError{Stage: environment.StageUnexpected, Message: environment.MessageRouteFailed},
			wantStatus: http.StatusBadGateway,
			wantDetail: environment.MessageRouteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testSigningKey)
			s.env.set(func(f *fakeEnvironment) { f.routeErr = tt.err })

			w := s.do(t, http.MethodPost, "/v1/routes:compute", models.RouteComputeRequest{Start: "Patna", End: "Nowhere"})
			assert.Equal(t, tt.wantStatus, w.Code)

			problem := decode[models.Problem](t, w)
			assert.Equal(t, tt.wantDetail, problem.Detail)
		})
	}
}

func TestRouter_ComputeRoute_RequiresJSON(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:compute", bytes.NewBufferString("start=Patna"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_Insights(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/insights/forecast?aqi=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	forecast := decode[models.ForecastResponse](t, w)
	assert.Len(t, forecast.Series, 24)

	w = s.do(t, http.MethodGet, "/v1/insights/dynamic?aqi=100&offset=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	dynamic := decode[models.DynamicAQIResponse](t, w)
	assert.Equal(t, environment.DynamicAQI(100, 6), dynamic.AQI)

	w = s.do(t, http.MethodGet, "/v1/insights/forecast", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/insights/dynamic?aqi=100&offset=30", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_InsightsRejectOutOfRangeAQI(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	for _, path := range []string{
		"/v1/insights/forecast?aqi=9223372036854775807",
		"/v1/insights/forecast?aqi=-1",
		"/v1/insights/dynamic?aqi=1001&offset=24",
	} {
		w := s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, path)

		problem := decode[models.Problem](t, w)
		require.Len(t, problem.Errors, 1, path)
		assert.Equal(t, "aqi", problem.Errors[0].Field)
		assert.Equal(t, "OUT_OF_RANGE", problem.Errors[0].Code)
	}

	w := s.do(t, http.MethodGet, "/v1/insights/dynamic?aqi=1000&offset=24", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, environment.DynamicAQI(1000, 24), decode[models.DynamicAQIResponse](t, w).AQI)
}

func TestRouter_ListRegions(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[models.RegionsResponse](t, w).Count)

	aqi := 180
	require.NoError(t, s.regions.Save(context.Background(), regional.Reading{
		Region:      "IIT Patna (Bihta)",
		Coordinate:  bihta,
		Reading:     environment.Reading{AQI: &aqi, Status: environment.Classify(aqi)},
		RefreshedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}))

	w = s.do(t, http.MethodGet, "/v1/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))

	resp := decode[models.RegionsResponse](t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "iit-patna-bihta", resp.Regions[0].Slug)
	assert.Equal(t, string(environment.StatusUnhealthy), resp.Regions[0].Reading.Status)
}

func TestRouter_InvalidateGeocodeCache(t *testing.T) {
	s := newTestServer(t, testSigningKey)
	ctx := context.Background()

	_, err := s.cache.Geocode(ctx, "Patna")
	require.NoError(t, err)
	_, err = s.cache.Geocode(ctx, "patna ")
	require.NoError(t, err)
	assert.Equal(t, 1, s.geocoder.calls)

	w := s.do(t, http.MethodPost, "/v1/admin/geocode-cache/invalidate", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/admin/geocode-cache/invalidate", nil, "Authorization", s.operatorToken(t))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.CacheInvalidateResponse](t, w)
	assert.Equal(t, int64(1), resp.Removed)
	assert.Equal(t, "ops-alice", resp.InvalidatedBy)

	_, err = s.cache.Geocode(ctx, "Patna")
	require.NoError(t, err)
	assert.Equal(t, 2, s.geocoder.calls)
}

func TestRouter_AdminDisabledWithoutKey(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(t, http.MethodPost, "/v1/admin/geocode-cache/invalidate", nil, "Authorization", "Bearer anything")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/v1/ops/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	s := newTestServer(t, testSigningKey)

	w := s.do(t, http.MethodGet, "/v1/ops/health", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
