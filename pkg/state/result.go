package state

// Result is the unit an ability returns and the orchestrator merges: the
// producing ability's name plus a map of zero or more state-field updates.
type Result struct {
	Ability string
	Updates map[string]any
}

// NewResult constructs an ability result.
func NewResult(ability string, updates map[string]any) Result {
	if updates == nil {
		updates = make(map[string]any)
	}
	return Result{Ability: ability, Updates: updates}
}

// Merge applies a result to the request with shallow field-wise overwrite.
// Applying the same result twice yields the same state as applying it once.
//
// The escalation flag is monotonic: once escalation_decision.escalate is
// merged as true, no later merge within the run resets it to false.
func (r *Request) Merge(result Result) {
	for key, value := range result.Updates {
		if key == KeyEscalationDecision {
			value = r.guardEscalation(value)
		}
		r.fields[key] = deepCopyValue(value)
	}
}

// guardEscalation preserves an already-set escalate=true against any incoming
// update that would clear it.
func (r *Request) guardEscalation(incoming any) any {
	existing, ok := r.fields[KeyEscalationDecision].(map[string]any)
	if !ok {
		return incoming
	}
	escalated, ok := existing["escalate"].(bool)
	if !ok || !escalated {
		return incoming
	}

	merged, ok := deepCopyValue(incoming).(map[string]any)
	if !ok {
		// Malformed incoming value cannot clear the flag either.
		return existing
	}
	merged["escalate"] = true
	if _, hasReason := merged["reason"]; !hasReason {
		if reason, ok := existing["reason"]; ok {
			merged["reason"] = reason
		}
	}
	return merged
}

// Escalated reports whether the escalation flag has been merged as true.
func (r *Request) Escalated() bool {
	decision, ok := r.fields[KeyEscalationDecision].(map[string]any)
	if !ok {
		return false
	}
	escalate, ok := decision["escalate"].(bool)
	return ok && escalate
}
