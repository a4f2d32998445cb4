// Package health serves connection status over HTTP.
package health

import "github.com/vietddude/hivekit/internal/core/domain"

// SystemStatus represents the overall health of the process.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report summarizes a connection state.
type Report struct {
	SystemStatus     SystemStatus  `json:"system_status"`
	Connection       domain.Status `json:"connection"`
	Endpoint         string        `json:"endpoint,omitempty"`
	HealthyEndpoints int           `json:"healthy_endpoints"`
	TotalEndpoints   int           `json:"total_endpoints"`
	Error            string        `json:"error,omitempty"`
}

// Evaluate derives a report from state.
//
// Connected with every endpoint healthy is healthy; connected with some
// endpoints down, connecting or reconnecting is degraded; error and
// disconnected are critical.
func Evaluate(state domain.ConnectionState) Report {
	r := Report{
		Connection:     state.Status,
		Endpoint:       state.Endpoint,
		TotalEndpoints: len(state.Endpoints),
		Error:          state.Error,
	}
	for _, ep := range state.Endpoints {
		if ep.Healthy {
			r.HealthyEndpoints++
		}
	}

	switch state.Status {
	case domain.StatusConnected:
		r.SystemStatus = StatusHealthy
		if r.HealthyEndpoints < r.TotalEndpoints {
			r.SystemStatus = StatusDegraded
		}
	case domain.StatusConnecting, domain.StatusReconnecting:
		r.SystemStatus = StatusDegraded
	default:
		r.SystemStatus = StatusCritical
	}
	return r
}
