package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/atmosguard/atmosguard/internal/api/middleware"

// Metrics records request instruments labelled by route pattern, so session
// IDs never become metric attributes.
type Metrics struct {
	duration      metric.Float64Histogram
	requests      metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
	responseSize  metric.Int64Histogram
	activeStreams metric.Int64UpDownCounter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.duration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.requests, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests currently being served, streams excluded"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.activeStreams, err = meter.Int64UpDownCounter(
		"atmosguard.session.streams.active",
		metric.WithDescription("Open dashboard session streams"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware returns an HTTP middleware that records the instruments.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			gauge := m.inFlight
			if isStreamUpgrade(r) {
				gauge = m.activeStreams
			}
			methodAttr := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			gauge.Add(ctx, 1, methodAttr)
			defer gauge.Add(ctx, -1, methodAttr)

			rec := newRecorder(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.String("http.response.status_code", strconv.Itoa(rec.status)),
				attribute.Bool("error", rec.status >= http.StatusBadRequest),
			)
			m.requests.Add(ctx, 1, attrs)
			if rec.hijacked {
				return
			}
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.responseSize.Record(ctx, rec.written, attrs)
		})
	}
}
