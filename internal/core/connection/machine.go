package connection

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/metrics"
)

// Outcome is the machine's decision after a sweep.
type Outcome struct {
	Status      State
	Endpoint    string
	Error       string
	Transitions []Transition
}

// Machine owns the connection status and endpoint selection.
type Machine struct {
	mu           sync.Mutex
	status       State
	active       string
	preferred    string
	lastError    string
	failedSweeps int
	maxFailures  int
	selector     Selector
	history      History
	log          *slog.Logger
}

// NewMachine creates a machine in CONNECTING.
// maxFailures is the number of failed reconnect sweeps tolerated before DISCONNECTED.
func NewMachine(selector Selector, maxFailures int) *Machine {
	if selector == nil {
		selector = NewSelector(SelectSticky)
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &Machine{
		status:      domain.StatusConnecting,
		maxFailures: maxFailures,
		selector:    selector,
		log:         slog.Default().With("component", "connection"),
	}
}

// Status returns the current state.
func (m *Machine) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetPreferred seeds the endpoint the sticky policy should favour.
func (m *Machine) SetPreferred(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred = url
}

// History returns recent transitions, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Transitions()
}

// Retry moves ERROR or DISCONNECTED back to CONNECTING.
func (m *Machine) Retry(reason string) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.status, domain.StatusConnecting) {
		return Transition{}, fmt.Errorf(
			"%w: cannot retry from %s",
			ErrInvalidTransition,
			m.status,
		)
	}

	t := m.transition(domain.StatusConnecting, "", reason)
	m.lastError = ""
	m.failedSweeps = 0
	return t, nil
}

// Evaluate applies the results of a sweep and returns the resulting state.
// In ERROR and DISCONNECTED results are ignored until Retry.
func (m *Machine) Evaluate(endpoints []domain.EndpointStatus) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	var transitions []Transition

	switch m.status {
	case domain.StatusConnecting:
		if sel, ok := m.selector.Select(m.preferred, endpoints); ok {
			transitions = append(transitions, m.connect(sel))
		} else {
			m.lastError = exhaustionMessage(endpoints)
			transitions = append(transitions, m.transition(domain.StatusError, "", m.lastError))
		}

	case domain.StatusConnected:
		if isHealthy(m.active, endpoints) {
			break
		}
		reason := fmt.Sprintf("active endpoint %s failed", m.active)
		if ep, ok := findEndpoint(m.active, endpoints); ok && ep.LastError != "" {
			reason += ": " + ep.LastError
		} else if !ok {
			reason = fmt.Sprintf("active endpoint %s removed", m.active)
		}
		m.preferred = m.active
		m.active = ""
		m.failedSweeps = 0
		transitions = append(transitions, m.transition(domain.StatusReconnecting, "", reason))

		if sel, ok := m.selector.Select(m.preferred, endpoints); ok {
			transitions = append(transitions, m.connect(sel))
		}

	case domain.StatusReconnecting:
		if sel, ok := m.selector.Select(m.preferred, endpoints); ok {
			transitions = append(transitions, m.connect(sel))
			break
		}
		m.failedSweeps++
		if m.failedSweeps >= m.maxFailures {
			m.lastError = fmt.Sprintf(
				"reconnect failed after %d attempts: %s",
				m.failedSweeps,
				exhaustionMessage(endpoints),
			)
			transitions = append(transitions, m.transition(domain.StatusDisconnected, "", m.lastError))
		}
	}

	out := Outcome{
		Status:      m.status,
		Endpoint:    m.active,
		Transitions: transitions,
	}
	if m.status == domain.StatusError || m.status == domain.StatusDisconnected {
		out.Error = m.lastError
	}
	return out
}

// connect enters CONNECTED on sel. Caller holds m.mu.
func (m *Machine) connect(sel string) Transition {
	m.active = sel
	m.preferred = sel
	m.failedSweeps = 0
	m.lastError = ""
	return m.transition(domain.StatusConnected, sel, "healthy endpoint selected")
}

// transition records a state change. Caller holds m.mu.
func (m *Machine) transition(to State, endpoint, reason string) Transition {
	t := NewTransition(m.status, to, endpoint, reason)
	if !t.IsValid() {
		// Evaluate only produces table transitions; reaching here is a bug.
		m.log.Error("Invalid connection transition", "from", t.From, "to", t.To)
	}

	m.status = to
	m.history.Record(t)
	metrics.ConnectionTransitionsTotal.WithLabelValues(string(t.From), string(t.To)).Inc()
	m.log.Info("Connection state changed",
		"from", t.From,
		"to", t.To,
		"endpoint", endpoint,
		"reason", reason,
	)
	return t
}

func exhaustionMessage(endpoints []domain.EndpointStatus) string {
	if len(endpoints) == 0 {
		return "no healthy endpoint: no endpoints configured"
	}

	parts := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		msg := ep.LastError
		if msg == "" {
			msg = "unhealthy"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", ep.URL, msg))
	}
	return fmt.Sprintf("no healthy endpoint among %d: %s", len(endpoints), strings.Join(parts, "; "))
}
