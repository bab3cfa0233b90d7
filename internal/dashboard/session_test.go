package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/geolocation"
)

func ptr[T any](v T) *T { return &v }

var errUpstream = errors.New("upstream down")

// fakeFetcher answers from fields. A non-nil gate blocks the matching call
// until the gate is closed or the context is cancelled.
type fakeFetcher struct {
	mu sync.Mutex

	overview    *environment.Reading
	overviewErr error
	overviewAt  []geo.Coordinate

	station      func(geo.Coordinate) (*environment.StationSnapshot, error)
	pointGate    map[geo.Coordinate]chan struct{}
	pointEntered chan geo.Coordinate
	heat         *environment.HeatSnapshot
	heatErr      error
	route        *environment.RouteResult
	routeErr     error
	routeGate    chan struct{}
	routeCalls   int
}

func (f *fakeFetcher) FetchOverview(_ context.Context, coord geo.Coordinate) (*environment.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overviewAt = append(f.overviewAt, coord)
	return f.overview, f.overviewErr
}

func (f *fakeFetcher) FetchPointDetail(ctx context.Context, coord geo.Coordinate) (*environment.StationSnapshot, error) {
	f.mu.Lock()
	gate := f.pointGate[coord]
	entered := f.pointEntered
	f.mu.Unlock()

	if entered != nil {
		entered <- coord
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.station(coord)
}

func (f *fakeFetcher) FetchHeatDetail(context.Context, geo.Coordinate) (*environment.HeatSnapshot, error) {
	return f.heat, f.heatErr
}

func (f *fakeFetcher) ComputeRoute(ctx context.Context, _, _ string) (*environment.RouteResult, error) {
	f.mu.Lock()
	f.routeCalls++
	gate := f.routeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.route, f.routeErr
}

func newSession(f *fakeFetcher) *dashboard.Session {
	return dashboard.NewSession("ses_test", dashboard.Config{
		Fetcher:      f,
		Logger:       zerolog.Nop(),
		PlayInterval: time.Millisecond,
	})
}

func TestNewSession_InitialView(t *testing.T) {
	s := newSession(&fakeFetcher{})
	defer s.Close()

	v := s.View()
	assert.Equal(t, "ses_test", v.SessionID)
	assert.Equal(t, dashboard.TabOverview, v.Tab)
	assert.True(t, v.Overview.IsLoading())
	assert.Equal(t, "IIT Patna", v.Station.Name)
	assert.Equal(t, "Regional Overview", v.Heat.Name)
	assert.Nil(t, v.Route)
	assert.Equal(t, geolocation.DefaultCoordinate, v.Position)

	// Station AQI 45 is known from the seed, the overview is not.
	require.NotNil(t, v.Derived.DynamicAQI)
	assert.Equal(t, 45, *v.Derived.DynamicAQI)
	assert.Nil(t, v.Derived.Forecast)
	assert.Equal(t, 130, v.Derived.Interpolation.Target)
	assert.Equal(t, 63, v.Derived.Spike.Projected)
	assert.Equal(t, "Caution", v.Derived.OutdoorAdvice)
	assert.Equal(t, "Hazy", v.Derived.Visibility)
}

func TestSession_SetTab(t *testing.T) {
	s := newSession(&fakeFetcher{})
	defer s.Close()

	require.NoError(t, s.SetTab(dashboard.TabHeatMap))
	assert.Equal(t, dashboard.TabHeatMap, s.View().Tab)

	err := s.SetTab("Settings")
	assert.ErrorIs(t, err, dashboard.ErrUnknownTab)
	assert.Equal(t, dashboard.TabHeatMap, s.View().Tab)
}

func TestSession_ForecastOffsetDrivesDynamicAQI(t *testing.T) {
	s := newSession(&fakeFetcher{})
	defer s.Close()

	require.NoError(t, s.SetForecastOffset(4))
	v := s.View()
	assert.Equal(t, 55, *v.Derived.DynamicAQI)
	assert.Equal(t, environment.StatusModerate, *v.Derived.DynamicStatus)

	require.NoError(t, s.SetForecastOffset(-24))
	assert.Equal(t, 10, *s.View().Derived.DynamicAQI)

	assert.ErrorIs(t, s.SetForecastOffset(25), dashboard.ErrOffsetOutOfRange)
	assert.ErrorIs(t, s.SetPredictiveHour(-1), dashboard.ErrHourOutOfRange)
	assert.ErrorIs(t, s.SetPredictiveHour(25), dashboard.ErrHourOutOfRange)
}

func TestSession_RefreshOverview(t *testing.T) {
	f := &fakeFetcher{overview: &environment.Reading{
		Temperature: ptr(31),
		Humidity:    ptr(40),
		PM25:        ptr(20.0),
		AQI:         ptr(80),
		Status:      environment.StatusModerate,
	}}
	s := newSession(f)
	defer s.Close()

	hint := geo.Coordinate{Lat: 25.6, Lon: 85.1}
	assert.True(t, s.RefreshOverview(context.Background(), geolocation.HintLocator{Hint: &hint}))

	v := s.View()
	assert.Equal(t, hint, v.Position)
	assert.Equal(t, []geo.Coordinate{hint}, f.overviewAt)
	assert.Equal(t, 80, *v.Overview.AQI)
	assert.Equal(t, environment.ForecastSeries(80), v.Derived.Forecast)
	assert.Len(t, v.Derived.ForecastBands, environment.ForecastHours)
	assert.Equal(t, "Optimal", v.Derived.OutdoorAdvice)
	assert.Equal(t, "Clear", v.Derived.Visibility)
	assert.Equal(t, 28, v.Derived.Spike.Projected)
}

func TestSession_RefreshOverviewFailureKeepsPrevious(t *testing.T) {
	f := &fakeFetcher{overview: &environment.Reading{AQI: ptr(80), Status: environment.StatusModerate}}
	s := newSession(f)
	defer s.Close()

	require.True(t, s.RefreshOverview(context.Background(), nil))

	f.mu.Lock()
	f.overview, f.overviewErr = nil, errUpstream
	f.mu.Unlock()

	assert.False(t, s.RefreshOverview(context.Background(), nil))
	assert.Equal(t, 80, *s.View().Overview.AQI)
	// No hint falls back to the default position.
	assert.Equal(t, geolocation.DefaultCoordinate, f.overviewAt[1])
}

func TestSession_SelectPoint(t *testing.T) {
	f := &fakeFetcher{station: func(c geo.Coordinate) (*environment.StationSnapshot, error) {
		return &environment.StationSnapshot{Name: c.Name(), AQI: ptr(160), Status: environment.StatusUnhealthy}, nil
	}}
	s := newSession(f)
	defer s.Close()

	require.NoError(t, s.SetForecastOffset(8))
	assert.True(t, s.SelectPoint(context.Background(), geo.Coordinate{Lat: 25.6, Lon: 85.1}))

	v := s.View()
	assert.Equal(t, "Lat: 25.60, Lng: 85.10", v.Station.Name)
	assert.Equal(t, 0, v.ForecastOffset)
	assert.Equal(t, 160, *v.Derived.DynamicAQI)
	assert.Equal(t, environment.BandRed, *v.Derived.StationBand)
}

func TestSession_SelectPointFailureKeepsPreviousButResetsSliders(t *testing.T) {
	f := &fakeFetcher{station: func(geo.Coordinate) (*environment.StationSnapshot, error) {
		return nil, errUpstream
	}}
	s := newSession(f)
	defer s.Close()

	require.NoError(t, s.SetForecastOffset(8))
	assert.False(t, s.SelectPoint(context.Background(), geo.Coordinate{Lat: 1, Lon: 2}))

	v := s.View()
	assert.Equal(t, "IIT Patna", v.Station.Name)
	assert.Equal(t, 0, v.ForecastOffset)
}

func TestSession_NewerPointSelectionWins(t *testing.T) {
	slow := geo.Coordinate{Lat: 1, Lon: 1}
	fast := geo.Coordinate{Lat: 2, Lon: 2}
	gate := make(chan struct{})

	f := &fakeFetcher{
		pointGate:    map[geo.Coordinate]chan struct{}{slow: gate},
		pointEntered: make(chan geo.Coordinate, 2),
		station: func(c geo.Coordinate) (*environment.StationSnapshot, error) {
			return &environment.StationSnapshot{Name: c.Name(), AQI: ptr(50)}, nil
		},
	}
	s := newSession(f)
	defer s.Close()

	first := make(chan bool)
	go func() { first <- s.SelectPoint(context.Background(), slow) }()

	// Wait for the slow fetch to be in flight before superseding it.
	assert.Equal(t, slow, <-f.pointEntered)

	assert.True(t, s.SelectPoint(context.Background(), fast))
	assert.False(t, <-first)
	close(gate)

	assert.Equal(t, fast.Name(), s.View().Station.Name)
}

func TestSession_SelectHeatPoint(t *testing.T) {
	f := &fakeFetcher{heat: &environment.HeatSnapshot{
		Name:               "Lat: 25.60, Lng: 85.10",
		Temperature:        36,
		SurfaceTemperature: 45,
		Status:             environment.ThermalSevereHeatIsland,
	}}
	s := newSession(f)
	defer s.Close()

	assert.True(t, s.SelectHeatPoint(context.Background(), geo.Coordinate{Lat: 25.6, Lon: 85.1}))
	assert.Equal(t, 45, s.View().Heat.SurfaceTemperature)

	f.heat, f.heatErr = nil, errUpstream
	assert.False(t, s.SelectHeatPoint(context.Background(), geo.Coordinate{}))
	assert.Equal(t, 45, s.View().Heat.SurfaceTemperature)
}

func TestSession_ComputeRoute(t *testing.T) {
	route := &environment.RouteResult{
		Start: geo.Coordinate{Lat: 25.59, Lon: 85.13},
		End:   geo.Coordinate{Lat: 24.79, Lon: 85.00},
		Path:  []geo.Coordinate{{Lat: 25.59, Lon: 85.13}, {Lat: 24.79, Lon: 85.00}},
	}
	f := &fakeFetcher{route: route}
	s := newSession(f)
	defer s.Close()

	got, err := s.ComputeRoute(context.Background(), "Patna", "Gaya")
	require.NoError(t, err)
	assert.Equal(t, route, got)

	v := s.View()
	assert.Equal(t, route, v.Route)
	assert.True(t, v.RouteVisible)
	assert.False(t, v.Routing)

	// A failure leaves the previous route alone.
	f.route, f.routeErr = nil, &environment.RouteError{Stage: environment.StageRoute, Err: environment.ErrNoRoute}
	_, err = s.ComputeRoute(context.Background(), "Patna", "Atlantis")
	assert.ErrorIs(t, err, environment.ErrNoRoute)
	assert.Equal(t, route, s.View().Route)

	// Selecting a point hides the route without discarding it.
	f.station = func(geo.Coordinate) (*environment.StationSnapshot, error) { return nil, errUpstream }
	s.SelectPoint(context.Background(), geo.Coordinate{})
	v = s.View()
	assert.False(t, v.RouteVisible)
	assert.NotNil(t, v.Route)
}

func TestSession_ComputeRouteRejectsWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{route: &environment.RouteResult{}, routeGate: gate}
	s := newSession(f)
	defer s.Close()

	done := make(chan error, 1)
	go func() {
		_, err := s.ComputeRoute(context.Background(), "Patna", "Gaya")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.View().Routing }, time.Second, time.Millisecond)

	_, err := s.ComputeRoute(context.Background(), "Patna", "Gaya")
	assert.ErrorIs(t, err, dashboard.ErrRouteBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.False(t, s.View().Routing)
	assert.Equal(t, 1, f.routeCalls)
}

func TestSession_AutoPlay(t *testing.T) {
	s := newSession(&fakeFetcher{})
	defer s.Close()

	require.NoError(t, s.SetPredictiveHour(22))
	require.NoError(t, s.Play())
	require.NoError(t, s.Play()) // no-op

	// 22 -> 23 -> 24 -> 0 wraps.
	require.Eventually(t, func() bool {
		v := s.View()
		return v.Playing && v.PredictiveHour < 22
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	paused := s.View().PredictiveHour
	assert.False(t, s.View().Playing)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, s.View().PredictiveHour)
}

func TestSession_ManualSliderStopsPlayback(t *testing.T) {
	s := newSession(&fakeFetcher{})
	defer s.Close()

	require.NoError(t, s.Play())
	require.NoError(t, s.SetPredictiveHour(5))

	v := s.View()
	assert.False(t, v.Playing)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, s.View().PredictiveHour)
}

func TestSession_Subscribe(t *testing.T) {
	s := newSession(&fakeFetcher{})

	views, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.SetTab(dashboard.TabAQIMap))
	select {
	case v := <-views:
		assert.Equal(t, dashboard.TabAQIMap, v.Tab)
	case <-time.After(time.Second):
		t.Fatal("no view after state change")
	}

	s.Close()
	_, ok := <-views
	assert.False(t, ok, "channel closes with the session")
}

func TestSession_ClosedRejectsChanges(t *testing.T) {
	s := newSession(&fakeFetcher{})
	s.Close()
	s.Close()

	assert.ErrorIs(t, s.SetTab(dashboard.TabAboutUs), dashboard.ErrSessionClosed)
	assert.ErrorIs(t, s.Play(), dashboard.ErrSessionClosed)
	_, err := s.ComputeRoute(context.Background(), "a", "b")
	assert.ErrorIs(t, err, dashboard.ErrSessionClosed)
	assert.False(t, s.SelectHeatPoint(context.Background(), geo.Coordinate{}))
}
