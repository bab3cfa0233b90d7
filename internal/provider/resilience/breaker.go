package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker guarding one upstream.
type BreakerConfig struct {
	Name string

	// OpenTimeout is how long the breaker stays open before letting
	// HalfOpenProbes requests through to test the upstream.
	OpenTimeout    time.Duration
	HalfOpenProbes uint32

	// The breaker trips once MinRequests calls have been counted and at
	// least FailureRatio of them failed.
	MinRequests  uint32
	FailureRatio float64

	// Window clears the counts periodically while closed. Zero keeps them
	// until the breaker trips.
	Window time.Duration
}

// DefaultBreakerConfig opens after 5 calls at a 50% failure rate and probes
// again after a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:           name,
		OpenTimeout:    time.Minute,
		HalfOpenProbes: 1,
		MinRequests:    5,
		FailureRatio:   0.5,
	}
}

// Trips reports whether counts should open the breaker.
func (c BreakerConfig) Trips(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// countsAsSuccess treats cancelled calls, such as a superseded dashboard
// fetch, as not the upstream's fault.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker[T any](cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.HalfOpenProbes,
		Interval:     cfg.Window,
		Timeout:      cfg.OpenTimeout,
		ReadyToTrip:  cfg.Trips,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
