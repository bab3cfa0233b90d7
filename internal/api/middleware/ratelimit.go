package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/atmosguard/atmosguard/internal/api/models"
)

// RateLimit allows Requests per sliding Window for each key.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Limits applied by the API router.
var (
	// AdminRateLimit applies per operator to the admin endpoints.
	AdminRateLimit = RateLimit{Requests: 10, Window: time.Minute}

	// ExpensiveRateLimit applies to route computation: two geocoding calls
	// and one routing call per request.
	ExpensiveRateLimit = RateLimit{Requests: 20, Window: time.Minute}

	// StandardRateLimit applies per client IP to the read endpoints.
	StandardRateLimit = RateLimit{Requests: 100, Window: time.Minute}

	// SessionRateLimit applies per dashboard session.
	SessionRateLimit = RateLimit{Requests: 120, Window: time.Minute}
)

// RateLimitByIP limits by client IP, as resolved by chi's RealIP middleware.
func RateLimitByIP(limit RateLimit) func(http.Handler) http.Handler {
	return limiter(limit, httprate.KeyByRealIP)
}

// RateLimitByOperator limits by the operator named in the token, falling
// back to the client IP outside OperatorAuth.
func RateLimitByOperator(limit RateLimit) func(http.Handler) http.Handler {
	return limiter(limit, func(r *http.Request) (string, error) {
		if operator := GetOperator(r.Context()); operator != "" {
			return "operator:" + operator, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

// RateLimitBySession limits by the {id} URL parameter, so tabs sharing a NAT
// address do not starve each other.
func RateLimitBySession(limit RateLimit) func(http.Handler) http.Handler {
	return limiter(limit, func(r *http.Request) (string, error) {
		if id := chi.URLParam(r, "id"); id != "" {
			return "session:" + id, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func limiter(limit RateLimit, key httprate.KeyFunc) func(http.Handler) http.Handler {
	// httprate does not expose the reset time; a full window is the upper bound.
	retryAfter := strconv.Itoa(int(math.Ceil(limit.Window.Seconds())))
	detail := fmt.Sprintf("Rate limit of %d requests per %s exceeded. Please try again later.", limit.Requests, limit.Window)

	return httprate.Limit(limit.Requests, limit.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.NewTooManyRequests(GetRequestID(r.Context()), detail).
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}
