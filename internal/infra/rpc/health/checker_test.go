package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/metrics"
)

func healthyNode(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if req["method"] != ProbeMethod {
			t.Errorf("expected %s, got %v", ProbeMethod, req["method"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]any{"head_block_number": 1234, "time": "2026-10-17T00:00:00"},
			"id":      req["id"],
		})
	}))
}

func TestChecker_Probe(t *testing.T) {
	good := healthyNode(t)
	defer good.Close()

	wrongShape := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"foo":1},"id":1}`))
	}))
	defer wrongShape.Close()

	c := NewChecker(time.Second)
	defer c.Close()

	if res := c.Probe(context.Background(), good.URL); !res.Healthy || res.Err != nil {
		t.Errorf("expected healthy probe, got %+v", res)
	}
	if res := c.Probe(context.Background(), wrongShape.URL); res.Healthy || res.Err == nil {
		t.Errorf("expected malformed result to be unhealthy, got %+v", res)
	}
}

func TestChecker_ProbeAllSettlesEveryEndpoint(t *testing.T) {
	good := healthyNode(t)
	defer good.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer broken.Close()

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	timeout := 200 * time.Millisecond
	c := NewChecker(timeout)
	defer c.Close()

	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	endpoints := domain.NewEndpointStatuses([]string{slow.URL, broken.URL, good.URL})

	start := time.Now()
	results := c.ProbeAll(context.Background(), endpoints)
	elapsed := time.Since(start)

	if elapsed > 3*timeout {
		t.Errorf("sweep took %v; probes should run concurrently", elapsed)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, r := range results {
		if r.URL != endpoints[i].URL {
			t.Errorf("result %d out of order: %s", i, r.URL)
		}
		if r.LastCheck == nil || !r.LastCheck.Equal(fixed) {
			t.Errorf("%s: expected lastCheck to be set", r.URL)
		}
		if !r.Healthy && r.LastError == "" {
			t.Errorf("%s: unhealthy endpoint without lastError", r.URL)
		}
	}

	if results[0].Healthy || results[0].LastError != "probe timed out" {
		t.Errorf("slow endpoint: expected timeout, got %+v", results[0])
	}
	if results[1].Healthy {
		t.Errorf("broken endpoint reported healthy")
	}
	if !results[2].Healthy || results[2].LastError != "" {
		t.Errorf("good endpoint: expected healthy, got %+v", results[2])
	}

	// Input must not be mutated; statuses flow through the returned slice.
	if endpoints[0].LastCheck != nil {
		t.Error("ProbeAll mutated its input")
	}
}

func TestChecker_ConsecutiveFailures(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	c := NewChecker(time.Second)
	defer c.Close()

	endpoints := domain.NewEndpointStatuses([]string{broken.URL})
	endpoints = c.ProbeAll(context.Background(), endpoints)
	endpoints = c.ProbeAll(context.Background(), endpoints)

	if endpoints[0].ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", endpoints[0].ConsecutiveFailures)
	}
}

func TestChecker_ForgetsRemovedEndpoints(t *testing.T) {
	first := healthyNode(t)
	defer first.Close()
	second := healthyNode(t)
	defer second.Close()

	c := NewChecker(time.Second)
	defer c.Close()

	results := c.ProbeAll(context.Background(), domain.NewEndpointStatuses([]string{first.URL}))
	if !results[0].Healthy {
		t.Fatalf("expected %s healthy, got %+v", first.URL, results[0])
	}

	c.ProbeAll(context.Background(), domain.NewEndpointStatuses([]string{second.URL}))

	c.mu.Lock()
	_, kept := c.providers[first.URL]
	pooled := len(c.providers)
	c.mu.Unlock()
	if kept || pooled != 1 {
		t.Errorf("expected only the current endpoint pooled, kept=%v pooled=%d", kept, pooled)
	}
	if metrics.EndpointHealthy.DeleteLabelValues(first.URL) {
		t.Errorf("healthy gauge still reported for removed endpoint %s", first.URL)
	}
	if !metrics.EndpointHealthy.DeleteLabelValues(second.URL) {
		t.Errorf("expected healthy gauge for %s", second.URL)
	}
}

func TestChecker_RateLimitedEndpointIsUnhealthy(t *testing.T) {
	var hits atomic.Int32
	throttled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]any{"head_block_number": 1234},
			"id":      req["id"],
		})
	}))
	defer throttled.Close()

	c := NewChecker(time.Second)
	defer c.Close()

	endpoints := c.ProbeAll(context.Background(), domain.NewEndpointStatuses([]string{throttled.URL}))
	if endpoints[0].Healthy || !strings.HasPrefix(endpoints[0].LastError, "rate limited") {
		t.Fatalf("expected rate limited endpoint, got %+v", endpoints[0])
	}

	endpoints = c.ProbeAll(context.Background(), endpoints)
	if endpoints[0].Healthy || !strings.HasPrefix(endpoints[0].LastError, "rate limited") {
		t.Errorf("expected endpoint to stay rate limited during backoff, got %+v", endpoints[0])
	}
	if endpoints[0].ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", endpoints[0].ConsecutiveFailures)
	}
	if hits.Load() != 1 {
		t.Errorf("expected no request during backoff, got %d", hits.Load())
	}
}
