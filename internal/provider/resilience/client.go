package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// HTTPDoer is the subset of *http.Client used by provider clients. Tests
// substitute their own implementation.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	Name string

	// Timeout bounds each individual attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Default 2.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker overrides DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client so its health shows up in
	// readiness reports.
	Registry *Registry

	// Transport overrides the underlying doer, mostly for tests.
	Transport HTTPDoer

	// Metrics is optional.
	Metrics *Metrics
}

// DefaultClientConfig returns defaults suited to provider lookups that
// sit on a request path: short timeout, two retries.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cb,
	}
}

// Client is an HTTP client guarded by a circuit breaker with bounded retry.
// 5xx responses and transport errors count as failures; 4xx do not.
type Client struct {
	name    string
	doer    HTTPDoer
	breaker *gobreaker.CircuitBreaker[*http.Response]
	config  ClientConfig

	mu            sync.Mutex
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// NewClient creates a resilient client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	if cfg.Metrics == nil && cfg.Registry != nil {
		cfg.Metrics = cfg.Registry.sharedMetrics()
	}

	doer := cfg.Transport
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		name:    cfg.Name,
		doer:    doer,
		breaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type parameter
		config:  cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

// Name returns the client's provider name.
func (c *Client) Name() string {
	return c.name
}

// Do executes req with breaker protection and retry. A request with a
// body is replayed through req.GetBody, so callers must build it with
// http.NewRequest* from a bytes or strings reader.
//
// When retries are exhausted on 5xx the last response is returned with a
// nil error so callers can inspect the status.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		attempt, err := c.cloneRequest(ctx, req)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.doer.Do(attempt)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			if resp != nil {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				lastResp = resp
			}
			return err
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
		return nil
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		c.recordFailure(err)
		if lastResp != nil && !errors.Is(err, ErrCircuitOpen) {
			c.config.Metrics.record(ctx, c.name, time.Since(start), lastResp.StatusCode, nil)
			return lastResp, nil
		}
		c.config.Metrics.record(ctx, c.name, time.Since(start), 0, err)
		if lastResp != nil {
			lastResp.Body.Close()
		}
		return nil, err
	}

	c.recordSuccess()
	c.config.Metrics.record(ctx, c.name, time.Since(start), lastResp.StatusCode, nil)
	return lastResp, nil
}

func (c *Client) cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%s: request body cannot be replayed", c.name)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%s: replay body: %w", c.name, err)
	}
	clone.Body = body
	return clone, nil
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	c.lastSuccessAt = time.Now()
	c.mu.Unlock()
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	c.lastFailureAt = time.Now()
	c.lastError = err.Error()
	c.mu.Unlock()
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// Health returns a point-in-time view of the client.
func (c *Client) Health() ProviderHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ProviderHealth{
		Name:          c.name,
		CircuitState:  c.breaker.State(),
		Counts:        c.breaker.Counts(),
		LastSuccessAt: c.lastSuccessAt,
		LastFailureAt: c.lastFailureAt,
		LastError:     c.lastError,
	}
}
