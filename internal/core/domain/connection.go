package domain

import "time"

// Status is the overall state of the RPC connection.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ChainHandle is an opaque client bound to exactly one endpoint.
type ChainHandle interface {
	Endpoint() string
	Close() error
}

// ConnectionState is the composed state published to subscribers.
// Endpoint and ChainHandle are set together, and only while Status is connected.
type ConnectionState struct {
	Status      Status           `json:"status"`
	Endpoint    string           `json:"endpoint,omitempty"`
	Endpoints   []EndpointStatus `json:"endpoints"`
	ChainHandle ChainHandle      `json:"-"`
	Error       string           `json:"error,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsConnected reports whether a live endpoint/handle pair is available.
func (s ConnectionState) IsConnected() bool {
	return s.Status == StatusConnected && s.Endpoint != "" && s.ChainHandle != nil
}

// Clone returns a copy that shares no mutable memory with s.
func (s ConnectionState) Clone() ConnectionState {
	out := s
	if s.Endpoints != nil {
		out.Endpoints = make([]EndpointStatus, len(s.Endpoints))
		for i, e := range s.Endpoints {
			out.Endpoints[i] = e.Clone()
		}
	}
	return out
}
