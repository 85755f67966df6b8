package orchestrator

import "fmt"

// FaultKind classifies fatal run failures.
type FaultKind string

const (
	// FaultKindConfig covers malformed pipelines and invalid transitions.
	FaultKindConfig FaultKind = "config"
	// FaultKindUnknownAbility covers stages naming unregistered abilities.
	FaultKindUnknownAbility FaultKind = "unknown_ability"
	// FaultKindTemplate covers unresolved prompt templates.
	FaultKindTemplate FaultKind = "template"
	// FaultKindProvider covers model requests the provider rejected.
	FaultKindProvider FaultKind = "provider"
	// FaultKindAbility covers unexpected local or human executor failures.
	FaultKindAbility FaultKind = "ability"
)

// Fault describes why a run failed: where it was and what went wrong.
type Fault struct {
	Stage   string
	Ability string
	Kind    FaultKind
	Cause   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("stage %s ability %s: %s fault: %v", f.Stage, f.Ability, f.Kind, f.Cause)
}

func (f *Fault) Unwrap() error {
	return f.Cause
}
