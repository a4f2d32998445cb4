package connection

import (
	"testing"

	"github.com/vietddude/hivekit/internal/core/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{domain.StatusConnecting, domain.StatusConnected, true},
		{domain.StatusConnecting, domain.StatusError, true},
		{domain.StatusConnected, domain.StatusReconnecting, true},
		{domain.StatusConnected, domain.StatusError, false},
		{domain.StatusReconnecting, domain.StatusConnected, true},
		{domain.StatusReconnecting, domain.StatusDisconnected, true},
		{domain.StatusReconnecting, domain.StatusError, false},
		{domain.StatusDisconnected, domain.StatusConnecting, true},
		{domain.StatusDisconnected, domain.StatusConnected, false},
		{domain.StatusError, domain.StatusConnecting, true},
		{domain.StatusError, domain.StatusConnected, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEveryStateCanReachConnecting(t *testing.T) {
	// Breadth-first search over the table: no state may be terminal.
	for _, start := range AllStates {
		seen := map[State]bool{start: true}
		queue := []State{start}
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			for _, next := range ValidTransitions[s] {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		if start != domain.StatusConnecting && !seen[domain.StatusConnecting] {
			t.Errorf("state %s cannot reach connecting", start)
		}
	}
}

func TestHistoryIsBounded(t *testing.T) {
	var h History
	for i := 0; i < historySize+5; i++ {
		h.Record(NewTransition(domain.StatusConnecting, domain.StatusError, "", "x"))
	}
	if got := len(h.Transitions()); got != historySize {
		t.Errorf("expected %d transitions, got %d", historySize, got)
	}
}
