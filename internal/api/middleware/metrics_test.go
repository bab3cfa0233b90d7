package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/atmosguard/atmosguard/internal/api/middleware"
)

func newTestMetrics(t *testing.T) (*middleware.Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, err := middleware.NewMetrics()
	require.NoError(t, err)
	return m, reader
}

// int64Points returns the data points of the named int64 sum, or nil.
func int64Points(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is %T", name, m.Data)
			return sum.DataPoints
		}
	}
	return nil
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := routed(http.MethodGet, "/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}, m.Middleware())

	for _, id := range []string{"a1", "b2", "c3"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id, http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	points := int64Points(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	assert.Equal(t, int64(3), points[0].Value)

	route, ok := points[0].Attributes.Value("http.route")
	require.True(t, ok)
	assert.Equal(t, "/v1/sessions/{id}", route.AsString())
	status, _ := points[0].Attributes.Value("http.response.status_code")
	assert.Equal(t, "200", status.AsString())
}

func TestMetrics_FlagsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := routed(http.MethodPost, "/v1/routes:compute", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, m.Middleware())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/routes:compute", http.NoBody))

	points := int64Points(t, reader, "http.server.request.total")
	require.Len(t, points, 1)
	isErr, ok := points[0].Attributes.Value("error")
	require.True(t, ok)
	assert.True(t, isErr.AsBool())
}

func TestMetrics_CountsOpenStreams(t *testing.T) {
	m, reader := newTestMetrics(t)

	var during int64
	handler := routed(http.MethodGet, "/v1/sessions/{id}/stream", func(w http.ResponseWriter, _ *http.Request) {
		for _, p := range int64Points(t, reader, "atmosguard.session.streams.active") {
			during += p.Value
		}
		w.WriteHeader(http.StatusOK)
	}, m.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/stream", http.NoBody)
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(1), during)

	var after int64
	for _, p := range int64Points(t, reader, "atmosguard.session.streams.active") {
		after += p.Value
	}
	assert.Zero(t, after)

	for _, p := range int64Points(t, reader, "http.server.active_requests") {
		assert.Zero(t, p.Value)
	}
}
