package orchestrator

// State is the lifecycle state of one pipeline run.
type State string

const (
	// StateRunning means the run is actively executing stage abilities.
	StateRunning State = "RUNNING"
	// StateAwaitingHumanInput means the run suspended on a human ability.
	StateAwaitingHumanInput State = "AWAITING_HUMAN_INPUT"
	// StateEscalated means the escalation flag fired and the run is being
	// routed to the escalation handler.
	StateEscalated State = "ESCALATED"
	// StateComplete is terminal success with a full payload.
	StateComplete State = "COMPLETE"
	// StateFailed is terminal failure with a structured fault.
	StateFailed State = "FAILED"
)

// ValidTransitions defines allowed state transitions for each state.
var ValidTransitions = map[State][]State{
	StateRunning:            {StateAwaitingHumanInput, StateEscalated, StateComplete},
	StateAwaitingHumanInput: {StateRunning},
	StateEscalated:          {StateAwaitingHumanInput, StateRunning},
	StateComplete:           {},
	StateFailed:             {},
}

// IsValidTransition checks if a state transition is allowed. Any state may
// transition to FAILED.
func IsValidTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateComplete
	}
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}
