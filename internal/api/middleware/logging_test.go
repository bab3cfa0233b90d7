package middleware_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/atmosguard/atmosguard/internal/api/middleware"
)

func TestLogger_LogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer

	handler := routed(http.MethodPut, "/v1/sessions/{id}/tab", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"tab":"heat"}`))
	}, middleware.Logger(zerolog.New(&buf)))

	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/abc123/tab", http.NoBody)
	req.Header.Set("User-Agent", "dashboard/1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLogEntry(t, &buf)
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "PUT", entry["method"])
	assert.Equal(t, "/v1/sessions/{id}/tab", entry["route"])
	assert.Equal(t, "/v1/sessions/abc123/tab", entry["path"])
	assert.Equal(t, "abc123", entry["session_id"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(14), entry["bytes"])
	assert.Equal(t, "dashboard/1.0", entry["user_agent"])
	assert.NotEmpty(t, entry["duration"])
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  string
	}{
		{"server error", "/v1/environment/point", http.StatusBadGateway, "error"},
		{"client error", "/v1/environment/point", http.StatusBadRequest, "warn"},
		{"success", "/v1/environment/point", http.StatusOK, "info"},
		{"probe", "/v1/ops/health", http.StatusOK, "debug"},
		{"failing probe", "/v1/ops/ready", http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			entry := lastLogEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "unmatched", entry["route"])
			assert.NotContains(t, entry, "session_id")
		})
	}
}

func TestLogger_ProbesHiddenAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	handler := middleware.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Empty(t, buf.String())
}

func TestLogger_IncludesRequestAndTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	handler := middleware.RequestID(
		middleware.Tracing("test-service")(
			middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})),
		),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/regions", http.NoBody))

	entry := lastLogEntry(t, &buf)
	requestID, _ := entry["request_id"].(string)
	assert.Contains(t, requestID, "req_")
	traceID, _ := entry["trace_id"].(string)
	assert.Len(t, traceID, 32)
}
