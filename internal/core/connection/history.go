package connection

// historySize is the number of transitions kept for diagnostics.
const historySize = 10

// History keeps the most recent transitions.
type History struct {
	transitions []Transition
}

// Record appends t, dropping the oldest entry when full.
func (h *History) Record(t Transition) {
	if len(h.transitions) >= historySize {
		copy(h.transitions, h.transitions[1:])
		h.transitions[len(h.transitions)-1] = t
		return
	}
	h.transitions = append(h.transitions, t)
}

// Transitions returns a copy of the recorded transitions, oldest first.
func (h *History) Transitions() []Transition {
	out := make([]Transition, len(h.transitions))
	copy(out, h.transitions)
	return out
}
