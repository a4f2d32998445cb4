package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrNoEndpoints is returned when a registry would be left empty.
var ErrNoEndpoints = errors.New("no endpoints configured")

// DefaultEndpoints are public Hive API nodes in priority order.
var DefaultEndpoints = []string{
	"https://api.hive.blog",
	"https://api.deathwing.me",
	"https://hive-api.arcange.eu",
	"https://api.openhive.network",
	"https://rpc.mahdiyari.info",
	"https://techcoderx.com",
	"https://hiveapi.actifit.io",
	"https://rpc.ausbit.dev",
}

// Policy holds the health-check constants.
type Policy struct {
	// Interval between periodic sweeps while connected
	Interval time.Duration
	// Timeout bounds a single probe
	Timeout time.Duration
	// ReconnectInterval between sweeps while reconnecting
	ReconnectInterval time.Duration
	// MaxConsecutiveFailures is the reconnect retry budget
	MaxConsecutiveFailures int
	// Selection names the endpoint selection policy
	Selection SelectionStrategy
}

// DefaultPolicy returns sensible health-check defaults.
func DefaultPolicy() Policy {
	return Policy{
		Interval:               30 * time.Second,
		Timeout:                5 * time.Second,
		ReconnectInterval:      5 * time.Second,
		MaxConsecutiveFailures: 3,
		Selection:              SelectSticky,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.ReconnectInterval <= 0 {
		p.ReconnectInterval = def.ReconnectInterval
	}
	if p.MaxConsecutiveFailures <= 0 {
		p.MaxConsecutiveFailures = def.MaxConsecutiveFailures
	}
	if p.Selection == "" {
		p.Selection = def.Selection
	}
	return p
}

// Registry is the ordered list of candidate endpoints.
// Every replacement bumps the version so in-flight sweeps can detect it.
type Registry struct {
	mu      sync.RWMutex
	urls    []string
	version uint64
	policy  Policy
}

// NewRegistry validates urls and creates a registry.
func NewRegistry(urls []string, policy Policy) (*Registry, error) {
	clean, err := normalizeURLs(urls)
	if err != nil {
		return nil, err
	}
	return &Registry{
		urls:    clean,
		version: 1,
		policy:  policy.withDefaults(),
	}, nil
}

// Snapshot returns a copy of the endpoint list and its version.
func (r *Registry) Snapshot() ([]string, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.urls))
	copy(out, r.urls)
	return out, r.version
}

// Version returns the current registry version.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Policy returns the health-check policy.
func (r *Registry) Policy() Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// Replace swaps the endpoint list.
func (r *Registry) Replace(urls []string) error {
	clean, err := normalizeURLs(urls)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = clean
	r.version++
	return nil
}

func normalizeURLs(urls []string) ([]string, error) {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))

	for _, raw := range urls {
		s := strings.TrimRight(strings.TrimSpace(raw), "/")
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", raw)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid endpoint %q: missing host", raw)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil, ErrNoEndpoints
	}
	return out, nil
}
