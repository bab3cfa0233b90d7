// Package resilience wraps upstream HTTP calls with retries, a circuit
// breaker per provider and a health registry for the status endpoint.
package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/atmosguard/atmosguard/internal/telemetry"
)

// ErrCircuitOpen is returned without touching the network while the
// provider's breaker is open or probing at capacity.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ServerError marks a 5xx answer. It feeds the breaker and the registry; the
// response itself still reaches the caller once retries are exhausted.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// ClientConfig configures one provider's client. Zero values take the
// defaults of DefaultClientConfig.
type ClientConfig struct {
	// Name labels the breaker, the registry entry and the metrics.
	Name string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker overrides DefaultBreakerConfig.
	Breaker *BreakerConfig

	Registry *Registry
	Metrics  *telemetry.ProviderMetrics
	Logger   zerolog.Logger
}

// DefaultClientConfig: 10s per attempt, 3 retries backing off from 100ms to 5s.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &breaker,
	}
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.Breaker == nil {
		cfg.Breaker = def.Breaker
	}
	return cfg
}

// Client is an http.Client for one upstream provider. Transient failures
// (network errors, 5xx) are retried with exponential backoff behind the
// provider's circuit breaker.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds the client and registers it with cfg.Registry, if set.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker[*http.Response](*cfg.Breaker, cfg.Logger), //nolint:bodyclose // type param, not response
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

func (c *Client) Name() string {
	return c.cfg.Name
}

// Do sends req under the request's context. A 5xx that survives every retry
// is returned as a response, not an error; ErrCircuitOpen is returned
// without a response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.retry(req)

	outcome := err
	if err == nil && resp.StatusCode >= http.StatusInternalServerError {
		outcome = &ServerError{StatusCode: resp.StatusCode}
	}
	c.cfg.Metrics.RecordRequest(c.cfg.Name, req.URL.Path, time.Since(start), outcome)
	if c.cfg.Registry != nil {
		c.cfg.Registry.Record(c.cfg.Name, outcome)
	}
	return resp, err
}

func (c *Client) retry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialInterval
	policy.MaxInterval = c.cfg.MaxInterval
	policy.MaxElapsedTime = 0

	// last holds the most recent response; earlier bodies are closed.
	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			_ = last.Body.Close()
		}
		last = resp
	}

	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to the caller
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if resp != nil {
			keep(resp)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx))
	switch {
	case err == nil:
		return last, nil
	case last != nil && !errors.Is(err, ErrCircuitOpen):
		return last, nil
	default:
		keep(nil)
		return nil, err
	}
}

func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
