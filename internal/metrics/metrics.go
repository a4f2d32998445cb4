// Package metrics exposes Prometheus collectors for the connection core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per endpoint and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"endpoint", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per endpoint and error kind
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// RPCLatency tracks successful RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hivekit_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// EndpointHealthy is 1 when the last probe of an endpoint succeeded
	EndpointHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hivekit_endpoint_healthy",
			Help: "Whether the endpoint passed its last health probe",
		},
		[]string{"endpoint"},
	)

	// ProbeFailuresTotal tracks failed health probes
	ProbeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_probe_failures_total",
			Help: "Total number of failed health probes",
		},
		[]string{"endpoint", "error_type"},
	)

	// ConnectionStatus is 1 for the current connection status, 0 otherwise
	ConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hivekit_connection_status",
			Help: "Current connection status",
		},
		[]string{"status"},
	)

	// ConnectionTransitionsTotal tracks connection state transitions
	ConnectionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_connection_transitions_total",
			Help: "Total number of connection state transitions",
		},
		[]string{"from", "to"},
	)

	// SweepsTotal tracks health sweeps by outcome (applied, superseded, closed)
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_sweeps_total",
			Help: "Total number of health sweeps",
		},
		[]string{"result"},
	)

	// ManaPollsTotal tracks account mana refreshes by outcome
	ManaPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_mana_polls_total",
			Help: "Total number of account mana refreshes",
		},
		[]string{"result"},
	)

	// FeedPagesTotal tracks ranked feed page fetches
	FeedPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hivekit_feed_pages_total",
			Help: "Total number of ranked feed pages fetched",
		},
		[]string{"sort", "result"},
	)
)

// SetConnectionStatus marks status as the only active connection status.
func SetConnectionStatus(status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}
		ConnectionStatus.WithLabelValues(s).Set(v)
	}
}

// ForgetEndpoint drops the probe series of an endpoint that left the registry.
func ForgetEndpoint(url string) {
	EndpointHealthy.DeleteLabelValues(url)
	ProbeFailuresTotal.DeletePartialMatch(prometheus.Labels{"endpoint": url})
}
