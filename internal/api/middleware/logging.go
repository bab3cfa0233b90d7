package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// probePaths are polled by the load balancer and logged at debug level.
var probePaths = map[string]bool{
	"/v1/ops/health": true,
	"/v1/ops/ready":  true,
}

// Logger returns a middleware that writes one structured line per request.
// Session streams are logged when the connection closes.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newRecorder(w)

			next.ServeHTTP(rec, r)

			event := log.WithLevel(requestLevel(r, rec.status))
			if !event.Enabled() {
				return
			}

			route := routePattern(r)
			event = event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent())

			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				event = event.Str("trace_id", sc.TraceID().String())
			}
			if strings.HasPrefix(route, "/v1/sessions/{id}") {
				event = event.Str("session_id", sessionID(r))
			}

			if rec.hijacked {
				event.Msg("stream closed")
				return
			}
			event.Msg("request completed")
		})
	}
}

func requestLevel(r *http.Request, status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case probePaths[r.URL.Path]:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
