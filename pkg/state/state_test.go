package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIntake() Intake {
	return Intake{
		CustomerName: "Alice",
		Email:        "alice@example.com",
		Query:        "My app crashes on login",
		Priority:     "high",
		TicketID:     123,
	}
}

func TestMergeOverwritesFields(t *testing.T) {
	req := NewRequest(testIntake())

	req.Merge(NewResult("normalize_fields", map[string]any{
		"priority": "high",
		"email":    "alice@example.com",
	}))

	v, ok := req.Field("priority")
	require.True(t, ok)
	assert.Equal(t, "high", v)

	req.Merge(NewResult("normalize_fields", map[string]any{"priority": "medium"}))
	v, _ = req.Field("priority")
	assert.Equal(t, "medium", v)
}

func TestMergeIdempotent(t *testing.T) {
	req := NewRequest(testIntake())
	result := NewResult("extract_entities", map[string]any{
		KeyEntities: map[string]any{"software": "App", "action": "login"},
	})

	req.Merge(result)
	once := req.Payload()

	req.Merge(result)
	twice := req.Payload()

	assert.Equal(t, once, twice, "merging the same result twice must equal merging it once")
}

func TestEscalationMonotonic(t *testing.T) {
	req := NewRequest(testIntake())

	req.Merge(NewResult("escalation_decision", map[string]any{
		KeyEscalationDecision: map[string]any{"escalate": true, "reason": "low confidence"},
	}))
	require.True(t, req.Escalated())

	// A later merge must not clear the flag.
	req.Merge(NewResult("escalation_decision", map[string]any{
		KeyEscalationDecision: map[string]any{"escalate": false},
	}))
	assert.True(t, req.Escalated(), "escalate=true must survive later merges")

	decision, _ := req.Field(KeyEscalationDecision)
	m := decision.(map[string]any)
	assert.Equal(t, "low confidence", m["reason"], "original reason carried forward")
}

func TestEscalationMalformedUpdateKeepsFlag(t *testing.T) {
	req := NewRequest(testIntake())
	req.Merge(NewResult("escalation_decision", map[string]any{
		KeyEscalationDecision: map[string]any{"escalate": true},
	}))

	req.Merge(NewResult("escalation_decision", map[string]any{
		KeyEscalationDecision: "garbage",
	}))
	assert.True(t, req.Escalated())
}

func TestSnapshotIsolation(t *testing.T) {
	req := NewRequest(testIntake())
	req.Merge(NewResult("add_flags_calculations", map[string]any{
		KeyFlags: map[string]any{"sla_risk": "elevated"},
	}))

	snap := req.Snapshot()
	snap.Fields[KeyFlags].(map[string]any)["sla_risk"] = "tampered"

	flags, _ := req.Field(KeyFlags)
	assert.Equal(t, "elevated", flags.(map[string]any)["sla_risk"],
		"mutating a snapshot must not affect the request")
}

func TestSnapshotTypedAccess(t *testing.T) {
	req := NewRequest(testIntake())
	req.Merge(NewResult("solution_evaluation", map[string]any{
		KeySolutionEvaluation: map[string]any{"score": 65},
	}))
	req.Merge(NewResult("response_generation", map[string]any{
		KeyResponse: "Hi Alice,",
	}))

	snap := req.Snapshot()
	assert.Equal(t, "Hi Alice,", snap.StringField(KeyResponse))
	assert.Nil(t, snap.MapField(KeyResponse))

	eval := snap.MapField(KeySolutionEvaluation)
	require.NotNil(t, eval)
	assert.Equal(t, 65, eval["score"])
}

func TestRequestJSONRoundTrip(t *testing.T) {
	req := NewRequest(testIntake())
	req.Merge(NewResult("extract_entities", map[string]any{
		KeyEntities: map[string]any{"software": "App"},
	}))

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var restored Request
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, req.ID, restored.ID)
	assert.Equal(t, req.Intake, restored.Intake)
	entities, ok := restored.Field(KeyEntities)
	require.True(t, ok)
	assert.Equal(t, "App", entities.(map[string]any)["software"])
}

func TestPayloadIncludesIdentity(t *testing.T) {
	req := NewRequest(testIntake())
	payload := req.Payload()

	assert.Equal(t, "Alice", payload["customer_name"])
	assert.Equal(t, 123, payload["ticket_id"])
	assert.Equal(t, req.ID, payload["id"])
}
