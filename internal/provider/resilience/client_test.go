package resilience_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmosguard/atmosguard/internal/provider/resilience"
)

func fastConfig(name string, maxRetries uint64) resilience.ClientConfig {
	// Keep the breaker closed for retry-focused tests.
	cb := resilience.DefaultBreakerConfig(name)
	cb.MinRequests = 1000
	return resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      maxRetries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Breaker:         &cb,
	}
}

func get(t *testing.T, client *resilience.Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	return client.Do(req)
}

func TestClient_SuccessfulRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":31.2}}`))
	}))
	defer server.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("open-meteo"))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open-meteo", client.Name())
}

func TestClient_RetryOn5xx(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("osrm", 5))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load(), "should have retried until success")
}

func TestClient_5xxAfterRetriesReturnsLastResponse(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("nominatim", 2))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), attempts.Load(), "initial attempt plus two retries")
}

func TestClient_CircuitBreakerTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var logs bytes.Buffer
	breaker := resilience.DefaultBreakerConfig("air-quality")
	breaker.OpenTimeout = time.Second
	client := resilience.NewClient(resilience.ClientConfig{
		Name:            "air-quality",
		Timeout:         time.Second,
		MaxRetries:      1,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Breaker:         &breaker,
		Logger:          zerolog.New(&logs),
	})

	for range 5 {
		resp, _ := get(t, client, server.URL)
		if resp != nil {
			resp.Body.Close()
		}
	}

	assert.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())

	resp, err := get(t, client, server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Contains(t, logs.String(), `"to":"open"`)
}

func TestClient_CancelledCallsDoNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(resilience.ClientConfig{
		Name:            "osrm",
		MaxRetries:      1,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 10 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		resp, err := client.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, client.CircuitBreakerState())
}

func TestClient_TimeoutHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig("slow", 1)
	cfg.Timeout = 50 * time.Millisecond
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err, "should timeout")
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("cancel"))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)

	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Error(t, err, "should be canceled")
}

func TestClient_4xxNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("bad-request", 3))

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), attempts.Load(), "should not retry 4xx errors")
}

func TestClient_RecordsOutcomesInRegistry(t *testing.T) {
	var fail atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("open-meteo-weather", 1)
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	resp, err := get(t, client, server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	health, ok := registry.Lookup("open-meteo-weather")
	require.True(t, ok)
	assert.False(t, health.LastSuccessAt.IsZero())
	assert.True(t, health.LastFailureAt.IsZero())

	fail.Store(true)
	resp, err = get(t, client, server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	health, _ = registry.Lookup("open-meteo-weather")
	assert.False(t, health.LastFailureAt.IsZero())
	assert.Contains(t, health.LastError, "Service Unavailable")
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig("osrm")

	assert.Equal(t, "osrm", cfg.Name)
	assert.Equal(t, uint32(1), cfg.HalfOpenProbes)
	assert.Equal(t, time.Minute, cfg.OpenTimeout)
}

func TestBreakerConfig_Trips(t *testing.T) {
	tests := []struct {
		name     string
		counts   gobreaker.Counts
		expected bool
	}{
		{"not enough requests", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"low failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five of five failing", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
		{"no requests", gobreaker.Counts{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resilience.DefaultBreakerConfig("open-meteo").Trips(tt.counts))
		})
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := resilience.DefaultClientConfig("nominatim")

	assert.Equal(t, "nominatim", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(3), cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 5*time.Second, cfg.MaxInterval)
	assert.NotNil(t, cfg.Breaker)
	assert.Nil(t, cfg.Registry)
}

func TestServerError(t *testing.T) {
	err := &resilience.ServerError{StatusCode: http.StatusInternalServerError}
	assert.Contains(t, err.Error(), "Internal Server Error")
}
