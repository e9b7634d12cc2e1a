package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/safekart/safekart/internal/storage"
)

// probeKey is read by StoreChecker; it never exists, so only the round trip is measured.
const probeKey = "__safekart_health_probe"

// StoreChecker reports whether a session store can be read.
type StoreChecker struct {
	name  string
	store storage.Store
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(name string, store storage.Store) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

// Check pings networked stores, then performs a single Get.
func (c *StoreChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	if p, ok := c.store.(storage.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return Unhealthy("session store is unreachable").
				WithDetail("error", err.Error()).
				WithLatency(time.Since(start))
		}
	}
	if _, _, err := c.store.Get(ctx, probeKey); err != nil {
		return Unhealthy("session store is not readable").
			WithDetail("error", err.Error()).
			WithLatency(time.Since(start))
	}
	return Healthy("session store is readable").WithLatency(time.Since(start))
}

// EndpointChecker reports whether an HTTP endpoint answers at all.
// Any response, including 4xx, counts as reachable; 5xx is degraded.
type EndpointChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewEndpointChecker creates a checker for url. A nil client uses a 5s timeout.
func NewEndpointChecker(name, url string, client *http.Client) *EndpointChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &EndpointChecker{name: name, url: url, client: client}
}

func (c *EndpointChecker) Name() string { return c.name }

// Check issues a GET and classifies the outcome.
func (c *EndpointChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Unhealthy("invalid endpoint URL").WithDetail("error", err.Error())
	}

	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := "endpoint is unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "endpoint timed out"
		}
		return Unhealthy(msg).
			WithDetail("url", c.url).
			WithDetail("error", err.Error()).
			WithLatency(latency)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded(fmt.Sprintf("endpoint answered with status %d", resp.StatusCode)).
			WithDetail("url", c.url).
			WithDetail("status", resp.StatusCode).
			WithLatency(latency)
	}
	return Healthy("endpoint is reachable").
		WithDetail("url", c.url).
		WithDetail("status", resp.StatusCode).
		WithLatency(latency)
}
