package provider

import (
	"net/http"
	"sync"
	"time"
)

// Status is an endpoint's condition as seen from the responses it sent.
type Status int

const (
	StatusHealthy   Status = iota // answering normally
	StatusDegraded                // answering, but slowly
	StatusThrottled               // answered 429, backing off
	StatusBlocked                 // answered 403, backing off
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

const (
	throttleBackoff = time.Minute
	blockBackoff    = 10 * time.Minute
	latencyWindow   = 20
	slowThreshold   = 3 * time.Second
)

// Monitor remembers rate-limit answers and recent latencies of one endpoint.
type Monitor struct {
	mu  sync.Mutex
	now func() time.Time

	latencies []time.Duration
	next      int

	backoffUntil time.Time
	backoffCode  int
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		now:       time.Now,
		latencies: make([]time.Duration, 0, latencyWindow),
	}
}

// RecordRequest adds the latency of a successful call to the window.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) < latencyWindow {
		m.latencies = append(m.latencies, latency)
		return
	}
	m.latencies[m.next] = latency
	m.next = (m.next + 1) % latencyWindow
}

// RecordThrottle starts a backoff after a 429 or 403. retryAfter overrides
// the default backoff when the node sent a Retry-After header.
func (m *Monitor) RecordThrottle(statusCode int, retryAfter time.Duration) {
	backoff := throttleBackoff
	if statusCode == http.StatusForbidden {
		backoff = blockBackoff
	}
	if retryAfter > 0 {
		backoff = retryAfter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	until := m.now().Add(backoff)
	if until.After(m.backoffUntil) || statusCode == http.StatusForbidden {
		m.backoffUntil = until
		m.backoffCode = statusCode
	}
}

// Status reports the endpoint's condition now.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Before(m.backoffUntil) {
		if m.backoffCode == http.StatusForbidden {
			return StatusBlocked
		}
		return StatusThrottled
	}
	if len(m.latencies) >= 5 && m.averageLocked() > slowThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// BackoffRemaining is how long the current rate-limit backoff lasts, or 0.
func (m *Monitor) BackoffRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return max(m.backoffUntil.Sub(m.now()), 0)
}

func (m *Monitor) averageLocked() time.Duration {
	if len(m.latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range m.latencies {
		total += l
	}
	return total / time.Duration(len(m.latencies))
}
