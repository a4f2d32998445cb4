package connection

import (
	"fmt"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// SelectionStrategy defines how an endpoint is chosen on entering CONNECTED.
// A healthy active endpoint is never replaced, whatever the strategy.
type SelectionStrategy string

const (
	SelectSticky     SelectionStrategy = "sticky"      // Keep the previous endpoint while healthy
	SelectPriority   SelectionStrategy = "priority"    // First healthy in registry order when (re)connecting
	SelectLatency    SelectionStrategy = "latency"     // Lowest probe latency
	SelectRoundRobin SelectionStrategy = "round_robin" // Next healthy after the previous one
)

// ParseSelectionStrategy validates a configured strategy name.
func ParseSelectionStrategy(s string) (SelectionStrategy, error) {
	switch SelectionStrategy(s) {
	case "":
		return SelectSticky, nil
	case SelectSticky, SelectPriority, SelectLatency, SelectRoundRobin:
		return SelectionStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown selection strategy %q", s)
	}
}

// Selector picks an endpoint from sweep results.
// previous is the endpoint used before, or empty.
type Selector interface {
	Select(previous string, endpoints []domain.EndpointStatus) (string, bool)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(previous string, endpoints []domain.EndpointStatus) (string, bool)

// Select calls f.
func (f SelectorFunc) Select(previous string, endpoints []domain.EndpointStatus) (string, bool) {
	return f(previous, endpoints)
}

// NewSelector returns the selector for a strategy, defaulting to sticky.
func NewSelector(strategy SelectionStrategy) Selector {
	switch strategy {
	case SelectPriority:
		return SelectorFunc(firstHealthy)
	case SelectLatency:
		return SelectorFunc(lowestLatency)
	case SelectRoundRobin:
		return SelectorFunc(roundRobin)
	default:
		return SelectorFunc(sticky)
	}
}

func sticky(previous string, endpoints []domain.EndpointStatus) (string, bool) {
	if previous != "" && isHealthy(previous, endpoints) {
		return previous, true
	}
	return firstHealthy(previous, endpoints)
}

func firstHealthy(_ string, endpoints []domain.EndpointStatus) (string, bool) {
	for _, ep := range endpoints {
		if ep.Healthy {
			return ep.URL, true
		}
	}
	return "", false
}

func lowestLatency(_ string, endpoints []domain.EndpointStatus) (string, bool) {
	best := -1
	for i, ep := range endpoints {
		if !ep.Healthy {
			continue
		}
		if best < 0 || ep.Latency < endpoints[best].Latency {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return endpoints[best].URL, true
}

func roundRobin(previous string, endpoints []domain.EndpointStatus) (string, bool) {
	start := 0
	for i, ep := range endpoints {
		if ep.URL == previous {
			start = i + 1
			break
		}
	}

	for n := 0; n < len(endpoints); n++ {
		ep := endpoints[(start+n)%len(endpoints)]
		if ep.Healthy {
			return ep.URL, true
		}
	}
	return "", false
}

func isHealthy(url string, endpoints []domain.EndpointStatus) bool {
	for _, ep := range endpoints {
		if ep.URL == url {
			return ep.Healthy
		}
	}
	return false
}

func findEndpoint(url string, endpoints []domain.EndpointStatus) (domain.EndpointStatus, bool) {
	for _, ep := range endpoints {
		if ep.URL == url {
			return ep, true
		}
	}
	return domain.EndpointStatus{}, false
}
