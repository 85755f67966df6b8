// Package state defines the request state aggregate threaded through the
// support pipeline, the ability result unit, and the merge semantics that
// connect them.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known field keys produced by pipeline abilities. Each key is owned by
// exactly one stage; no stage reads a key produced by a later stage.
const (
	KeyStructuredRequest  = "structured_request"
	KeyEntities           = "extract_entities"
	KeyEnrichment         = "enrich_records"
	KeyFlags              = "flags"
	KeyClarifyQuestion    = "clarify_question"
	KeyExtractAnswer      = "extract_answer"
	KeyAnswers            = "answers"
	KeyKnowledgeBase      = "knowledge_base_search"
	KeyRetrievedData      = "retrieved_data"
	KeySolutionEvaluation = "solution_evaluation"
	KeyEscalationDecision = "escalation_decision"
	KeyDecision           = "decision"
	KeyTicket             = "ticket"
	KeyAPICalls           = "execute_api_calls"
	KeyNotifications      = "trigger_notifications"
	KeyResponse           = "response_generation"
	KeyErrors             = "errors"
)

// Intake carries the identity fields supplied when a request enters the
// pipeline. They are set once and immutable afterward.
type Intake struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Query        string `json:"query"`
	Priority     string `json:"priority"`
	TicketID     int    `json:"ticket_id"`
}

// Request is the single mutable aggregate for one support request. The
// orchestrator owns the only mutable copy; abilities see read-only snapshots.
type Request struct {
	ID        string    `json:"id"`
	Intake    Intake    `json:"intake"`
	CreatedAt time.Time `json:"created_at"`

	fields map[string]any
}

// NewRequest constructs a request with a fresh ID and empty derived fields.
func NewRequest(intake Intake) *Request {
	return &Request{
		ID:        uuid.New().String(),
		Intake:    intake,
		CreatedAt: time.Now().UTC(),
		fields:    make(map[string]any),
	}
}

// Snapshot is the read-only view handed to abilities. Fields is a deep copy;
// mutating it never affects the owning request.
type Snapshot struct {
	ID       string
	Intake   Intake
	Fields   map[string]any
}

// Snapshot returns a deep-copied view of the current state.
func (r *Request) Snapshot() Snapshot {
	return Snapshot{
		ID:     r.ID,
		Intake: r.Intake,
		Fields: deepCopyMap(r.fields),
	}
}

// Field returns a derived field value if present.
func (r *Request) Field(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Payload returns the terminal payload: identity fields plus a deep copy of
// every derived field. Normalized email and priority, when a stage produced
// them, win over the raw intake values.
func (r *Request) Payload() map[string]any {
	payload := deepCopyMap(r.fields)
	payload["id"] = r.ID
	payload["customer_name"] = r.Intake.CustomerName
	payload["query"] = r.Intake.Query
	payload["ticket_id"] = r.Intake.TicketID
	if _, ok := payload["email"]; !ok {
		payload["email"] = r.Intake.Email
	}
	if _, ok := payload["priority"]; !ok {
		payload["priority"] = r.Intake.Priority
	}
	return payload
}

// MarshalJSON serializes the request including derived fields, for run
// persistence across suspensions.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string         `json:"id"`
		Intake    Intake         `json:"intake"`
		CreatedAt time.Time      `json:"created_at"`
		Fields    map[string]any `json:"fields"`
	}{r.ID, r.Intake, r.CreatedAt, r.fields})
}

// UnmarshalJSON restores a request persisted at a suspension point.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string         `json:"id"`
		Intake    Intake         `json:"intake"`
		CreatedAt time.Time      `json:"created_at"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal request state: %w", err)
	}
	r.ID = raw.ID
	r.Intake = raw.Intake
	r.CreatedAt = raw.CreatedAt
	r.fields = raw.Fields
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	return nil
}

// deepCopyMap copies nested map[string]any / []any structures. Scalar values
// are shared, which is safe because they are immutable.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
