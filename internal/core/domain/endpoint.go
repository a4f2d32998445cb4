package domain

import "time"

// EndpointStatus is the last known health of a single RPC endpoint.
// LastCheck is nil until the first probe; LastError is empty when healthy.
type EndpointStatus struct {
	URL                 string        `json:"url"`
	Healthy             bool          `json:"healthy"`
	LastCheck           *time.Time    `json:"last_check"`
	LastError           string        `json:"last_error,omitempty"`
	Latency             time.Duration `json:"latency_ns"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// Clone copies the status including the LastCheck pointer target.
func (e EndpointStatus) Clone() EndpointStatus {
	out := e
	if e.LastCheck != nil {
		t := *e.LastCheck
		out.LastCheck = &t
	}
	return out
}

// NewEndpointStatuses creates unchecked statuses in registry order.
func NewEndpointStatuses(urls []string) []EndpointStatus {
	out := make([]EndpointStatus, len(urls))
	for i, u := range urls {
		out[i] = EndpointStatus{URL: u}
	}
	return out
}
