package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

var errHijackUnsupported = errors.New("underlying response writer does not support hijacking")

// unmatchedRoute labels requests chi could not route.
const unmatchedRoute = "unmatched"

// recorder captures what a handler wrote so the logging, metrics and tracing
// middleware can report it. Stream upgrades pass through Hijack.
type recorder struct {
	http.ResponseWriter
	status   int
	written  int64
	hijacked bool
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errHijackUnsupported
	}
	conn, buf, err := h.Hijack()
	if err == nil {
		rec.hijacked = true
		rec.status = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

func (rec *recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// routePattern returns the chi pattern that served r, e.g.
// "/v1/sessions/{id}/tab". Only meaningful once the handler has returned.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

// sessionID returns the {id} URL parameter of session routes.
func sessionID(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.URLParam("id")
	}
	return ""
}

func isStreamUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
