// Package health probes RPC endpoints and records per-endpoint health.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/infra/rpc/provider"
	"github.com/vietddude/hivekit/internal/metrics"
)

// ProbeMethod is the lightweight read-only call used to check an endpoint.
const ProbeMethod = "condenser_api.get_dynamic_global_properties"

// DefaultTimeout bounds a single probe when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// ProbeResult is the outcome of probing one endpoint.
type ProbeResult struct {
	Healthy bool
	Err     error
	Latency time.Duration
}

// Checker probes endpoints with a bounded timeout.
type Checker struct {
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	providers map[string]*provider.HTTPProvider
}

// NewChecker creates a checker whose probes time out after timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		timeout:   timeout,
		now:       time.Now,
		log:       slog.Default().With("component", "health"),
		providers: make(map[string]*provider.HTTPProvider),
	}
}

// Probe issues one probe call against url.
func (c *Checker) Probe(ctx context.Context, url string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.provider(url).Call(ctx, ProbeMethod, []any{})
	latency := time.Since(start)
	if err != nil {
		return ProbeResult{Err: err, Latency: latency}
	}

	var props struct {
		HeadBlockNumber *uint64 `json:"head_block_number"`
	}
	if err := json.Unmarshal(raw, &props); err != nil || props.HeadBlockNumber == nil {
		return ProbeResult{
			Err:     fmt.Errorf("%w: no head_block_number in %s result", provider.ErrMalformedResponse, ProbeMethod),
			Latency: latency,
		}
	}

	return ProbeResult{Healthy: true, Latency: latency}
}

// ProbeAll probes every endpoint concurrently and returns updated copies in the
// same order. It returns once every probe has settled; one slow endpoint never
// delays recording the others beyond the probe timeout.
// Endpoints probed earlier but missing from endpoints are forgotten.
func (c *Checker) ProbeAll(ctx context.Context, endpoints []domain.EndpointStatus) []domain.EndpointStatus {
	c.retain(endpoints)
	out := make([]domain.EndpointStatus, len(endpoints))

	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			out[i] = c.apply(ep.Clone(), c.Probe(ctx, ep.URL))
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (c *Checker) apply(ep domain.EndpointStatus, res ProbeResult) domain.EndpointStatus {
	checkedAt := c.now()
	ep.LastCheck = &checkedAt
	ep.Latency = res.Latency

	switch status := c.provider(ep.URL).Monitor.Status(); status {
	case provider.StatusThrottled, provider.StatusBlocked:
		if res.Healthy {
			res = ProbeResult{Err: fmt.Errorf("%w: endpoint %s", provider.ErrRateLimited, status), Latency: res.Latency}
		}
	case provider.StatusDegraded:
		c.log.Debug("Endpoint responding slowly", "endpoint", ep.URL)
	}

	if res.Healthy {
		ep.Healthy = true
		ep.LastError = ""
		ep.ConsecutiveFailures = 0
		metrics.EndpointHealthy.WithLabelValues(ep.URL).Set(1)
		return ep
	}

	kind := provider.ClassifyError(res.Err)
	ep.Healthy = false
	ep.ConsecutiveFailures++
	ep.LastError = describe(kind, res.Err)
	metrics.EndpointHealthy.WithLabelValues(ep.URL).Set(0)
	metrics.ProbeFailuresTotal.WithLabelValues(ep.URL, string(kind)).Inc()
	c.log.Debug("Endpoint probe failed", "endpoint", ep.URL, "kind", kind, "error", res.Err)
	return ep
}

// describe renders a probe failure for display.
func describe(kind provider.ErrorKind, err error) string {
	switch kind {
	case provider.KindTimeout:
		return "probe timed out"
	case provider.KindCanceled:
		return "probe canceled"
	case provider.KindRateLimited:
		if err != nil && !errors.Is(err, provider.ErrRateLimited) {
			return "rate limited: " + err.Error()
		}
	}
	if err == nil {
		return "probe failed"
	}
	return err.Error()
}

func (c *Checker) provider(url string) *provider.HTTPProvider {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.providers[url]
	if !ok {
		p = provider.NewHTTPProvider(url, url, c.timeout)
		c.providers[url] = p
	}
	return p
}

// retain closes providers and drops metric series of URLs not in endpoints.
func (c *Checker) retain(endpoints []domain.EndpointStatus) {
	keep := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		keep[ep.URL] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for url, p := range c.providers {
		if _, ok := keep[url]; ok {
			continue
		}
		_ = p.Close()
		delete(c.providers, url)
		metrics.ForgetEndpoint(url)
		c.log.Debug("Forgot removed endpoint", "endpoint", url)
	}
}

// Close releases pooled connections of every probed endpoint.
func (c *Checker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, p := range c.providers {
		_ = p.Close()
		delete(c.providers, url)
	}
	return nil
}
