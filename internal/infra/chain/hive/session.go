package hive

import (
	"log/slog"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// DefaultCallTimeout bounds a single query through a session.
const DefaultCallTimeout = 15 * time.Second

// SessionFactory builds and disposes chain handles.
// Each Build returns a fresh client; handles are never shared between selections.
type SessionFactory struct {
	timeout time.Duration
	log     *slog.Logger
}

// NewSessionFactory creates a factory whose clients time out after timeout.
func NewSessionFactory(timeout time.Duration) *SessionFactory {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &SessionFactory{
		timeout: timeout,
		log:     slog.Default().With("component", "session"),
	}
}

// Build returns a new chain handle bound to endpoint.
func (f *SessionFactory) Build(endpoint string) domain.ChainHandle {
	f.log.Debug("Building chain session", "endpoint", endpoint)
	return NewClient(endpoint, f.timeout)
}

// Dispose closes handle. A nil handle is ignored.
func (f *SessionFactory) Dispose(handle domain.ChainHandle) {
	if handle == nil {
		return
	}
	if err := handle.Close(); err != nil {
		f.log.Warn("Failed to close chain session", "endpoint", handle.Endpoint(), "error", err)
	}
}
