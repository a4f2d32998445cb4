package connection

import (
	"errors"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// State is an alias for domain.Status for internal use.
type State = domain.Status

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.StatusConnecting:   {domain.StatusConnected, domain.StatusError},
	domain.StatusConnected:    {domain.StatusReconnecting},
	domain.StatusReconnecting: {domain.StatusConnected, domain.StatusDisconnected},
	domain.StatusDisconnected: {domain.StatusConnecting},
	domain.StatusError:        {domain.StatusConnecting},
}

// AllStates lists every status in declaration order.
var AllStates = []State{
	domain.StatusConnecting,
	domain.StatusConnected,
	domain.StatusReconnecting,
	domain.StatusDisconnected,
	domain.StatusError,
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, endpoint, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Endpoint:  endpoint,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.StatusConnecting:
		return "Connecting - first sweep in progress"
	case domain.StatusConnected:
		return "Connected - using a healthy endpoint"
	case domain.StatusReconnecting:
		return "Reconnecting - active endpoint failed, searching for a healthy one"
	case domain.StatusDisconnected:
		return "Disconnected - retry budget exhausted, waiting for manual retry"
	case domain.StatusError:
		return "Error - no healthy endpoint, waiting for manual retry"
	default:
		return "Unknown state"
	}
}
