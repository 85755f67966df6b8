package ability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/kb"
	"supportflow/pkg/state"
	"supportflow/pkg/ticket"
)

type fakeTickets struct {
	calls []map[string]any
	err   error
}

func (f *fakeTickets) Update(_ context.Context, id int, fields map[string]any) error {
	call := map[string]any{"id": id}
	for k, v := range fields {
		call[k] = v
	}
	f.calls = append(f.calls, call)
	return f.err
}

func newTestSet(tickets ticket.Updater) *LocalSet {
	return NewLocalSet(kb.NewMemorySearcher(kb.DefaultArticles()), tickets, 90)
}

func snapshotWith(t *testing.T, intake state.Intake, results ...state.Result) state.Snapshot {
	t.Helper()
	req := state.NewRequest(intake)
	for _, res := range results {
		req.Merge(res)
	}
	return req.Snapshot()
}

func TestNormalizeFields(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{
		Email:    "  Ana.Lima@Example.COM ",
		Priority: "URGENT",
	})

	res, err := set.normalizeFields(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "high", res.Updates["priority"])
	assert.Equal(t, "ana.lima@example.com", res.Updates["email"])
}

func TestNormalizeFieldsUnknownPriorityPassesThrough(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Priority: "P1"})

	res, err := set.normalizeFields(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Updates["priority"])
}

func TestAddFlagsCalculations(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Priority: "high"},
		state.NewResult("extract_entities", map[string]any{
			state.KeyEntities: map[string]any{"software": "App"},
		}),
	)

	res, err := set.addFlagsCalculations(context.Background(), snap)
	require.NoError(t, err)
	flags := res.Updates[state.KeyFlags].(map[string]any)
	assert.Equal(t, true, flags["has_entities"])
	assert.Equal(t, false, flags["has_kb_result"])
	assert.Equal(t, "elevated", flags["sla_risk"])
}

func TestStoreAnswerAppends(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{},
		state.NewResult("extract_answer", map[string]any{
			state.KeyExtractAnswer: "It happens on my iPhone",
		}),
	)

	res, err := set.storeAnswer(context.Background(), snap)
	require.NoError(t, err)
	answers := res.Updates[state.KeyAnswers].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "It happens on my iPhone",
		answers[0].(map[string]any)["text"])
}

func TestKnowledgeBaseSearchHit(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Query: "App crashes when logging in"})

	res, err := set.knowledgeBaseSearch(context.Background(), snap)
	require.NoError(t, err)
	kbResult := res.Updates[state.KeyKnowledgeBase].(map[string]any)
	assert.Equal(t, true, kbResult["found"])
	assert.NotEmpty(t, kbResult["results"])
}

func TestKnowledgeBaseSearchMissIsRecoverable(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Query: "zxqv"})

	res, err := set.knowledgeBaseSearch(context.Background(), snap)
	assert.ErrorIs(t, err, ErrRecoverable)
	kbResult := res.Updates[state.KeyKnowledgeBase].(map[string]any)
	assert.Equal(t, false, kbResult["found"])
}

func TestSolutionEvaluationScoring(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Priority: "high"},
		state.NewResult("normalize_fields", map[string]any{"priority": "high"}),
		state.NewResult("extract_entities", map[string]any{
			state.KeyEntities: map[string]any{"software": "App"},
		}),
		state.NewResult("knowledge_base_search", map[string]any{
			state.KeyKnowledgeBase: map[string]any{"found": true},
		}),
	)

	res, err := set.solutionEvaluation(context.Background(), snap)
	require.NoError(t, err)
	eval := res.Updates[state.KeySolutionEvaluation].(map[string]any)
	// 50 baseline + 15 high priority + 10 entities + 10 kb hit.
	assert.Equal(t, 85, eval["score"])
}

func TestSolutionEvaluationKBMissPenalty(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{},
		state.NewResult("knowledge_base_search", map[string]any{
			state.KeyKnowledgeBase: map[string]any{"found": false},
		}),
	)

	res, err := set.solutionEvaluation(context.Background(), snap)
	require.NoError(t, err)
	eval := res.Updates[state.KeySolutionEvaluation].(map[string]any)
	assert.Equal(t, 45, eval["score"])
}

func TestEscalationDecisionBelowThreshold(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{},
		state.NewResult("solution_evaluation", map[string]any{
			state.KeySolutionEvaluation: map[string]any{"score": 85},
		}),
	)

	res, err := set.escalationDecision(context.Background(), snap)
	require.NoError(t, err)
	decision := res.Updates[state.KeyEscalationDecision].(map[string]any)
	assert.Equal(t, true, decision["escalate"])
	assert.Contains(t, decision["reason"], "below threshold 90")
}

func TestEscalationDecisionAtThreshold(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{},
		state.NewResult("solution_evaluation", map[string]any{
			state.KeySolutionEvaluation: map[string]any{"score": 90},
		}),
	)

	res, err := set.escalationDecision(context.Background(), snap)
	require.NoError(t, err)
	decision := res.Updates[state.KeyEscalationDecision].(map[string]any)
	assert.Equal(t, false, decision["escalate"])
}

func TestUpdatePayloadMirrorsDecision(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{},
		state.NewResult("solution_evaluation", map[string]any{
			state.KeySolutionEvaluation: map[string]any{"score": 60},
		}),
		state.NewResult("escalation_decision", map[string]any{
			state.KeyEscalationDecision: map[string]any{
				"escalate": true, "reason": "confidence score 60 below threshold 90",
			},
		}),
	)

	res, err := set.updatePayload(context.Background(), snap)
	require.NoError(t, err)
	decision := res.Updates[state.KeyDecision].(map[string]any)
	assert.Equal(t, 60, decision["score"])
	assert.Equal(t, true, decision["should_escalate"])
	assert.Equal(t, "pending_handoff", decision["next_status_hint"])
}

func TestUpdateTicketEscalated(t *testing.T) {
	tickets := &fakeTickets{}
	set := newTestSet(tickets)
	snap := snapshotWith(t, state.Intake{TicketID: 101, Priority: "high"},
		state.NewResult("update_payload", map[string]any{
			state.KeyDecision: map[string]any{
				"score": 60, "should_escalate": true,
				"escalation_reason": "confidence score 60 below threshold 90",
			},
		}),
	)

	res, err := set.updateTicket(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, tickets.calls, 1)
	assert.Equal(t, 101, tickets.calls[0]["id"])
	assert.Equal(t, "escalated", tickets.calls[0]["status"])

	ticketState := res.Updates[state.KeyTicket].(map[string]any)
	assert.Equal(t, "escalated", ticketState["status"])
}

func TestUpdateTicketFailureIsRecoverable(t *testing.T) {
	tickets := &fakeTickets{err: ticket.ErrTicketSystem}
	set := newTestSet(tickets)
	snap := snapshotWith(t, state.Intake{TicketID: 101})

	res, err := set.updateTicket(context.Background(), snap)
	assert.ErrorIs(t, err, ErrRecoverable)

	ticketState := res.Updates[state.KeyTicket].(map[string]any)
	assert.Contains(t, ticketState["error"], "ticket system unavailable")
}

func TestCloseTicketSkipsEscalated(t *testing.T) {
	tickets := &fakeTickets{}
	set := newTestSet(tickets)
	snap := snapshotWith(t, state.Intake{TicketID: 101},
		state.NewResult("escalation_decision", map[string]any{
			state.KeyEscalationDecision: map[string]any{"escalate": true},
		}),
	)

	res, err := set.closeTicket(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, tickets.calls)

	closed := res.Updates["close_ticket"].(map[string]any)
	assert.Equal(t, true, closed["skipped"])
	assert.Equal(t, "Ticket escalated, cannot close automatically", closed["reason"])
}

func TestCloseTicketClosesResolved(t *testing.T) {
	tickets := &fakeTickets{}
	set := newTestSet(tickets)
	snap := snapshotWith(t, state.Intake{TicketID: 101},
		state.NewResult("escalation_decision", map[string]any{
			state.KeyEscalationDecision: map[string]any{"escalate": false},
		}),
		state.NewResult("update_ticket", map[string]any{
			state.KeyTicket: map[string]any{"ticket_id": 101, "status": "resolved"},
		}),
	)

	res, err := set.closeTicket(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, tickets.calls, 1)
	assert.Equal(t, "closed", tickets.calls[0]["status"])

	closed := res.Updates["close_ticket"].(map[string]any)
	assert.Equal(t, "closed", closed["status"])
	ticketState := res.Updates[state.KeyTicket].(map[string]any)
	assert.Equal(t, "closed", ticketState["status"])
}

func TestResponseGenerationEscalated(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{CustomerName: "Ana"},
		state.NewResult("solution_evaluation", map[string]any{
			state.KeySolutionEvaluation: map[string]any{"score": 60},
		}),
		state.NewResult("escalation_decision", map[string]any{
			state.KeyEscalationDecision: map[string]any{"escalate": true},
		}),
	)

	res, err := set.responseGeneration(context.Background(), snap)
	require.NoError(t, err)
	msg := res.Updates[state.KeyResponse].(string)
	assert.Contains(t, msg, "Hi Ana,")
	assert.Contains(t, msg, "confidence score: 60/100")
	assert.Contains(t, msg, "routing this to a specialist")
}

func TestTriggerNotifications(t *testing.T) {
	set := newTestSet(&fakeTickets{})
	snap := snapshotWith(t, state.Intake{Email: "ana@example.com"})

	res, err := set.triggerNotifications(context.Background(), snap)
	require.NoError(t, err)
	note := res.Updates[state.KeyNotifications].(map[string]any)
	assert.Equal(t, true, note["success"])
	assert.Equal(t, "ana@example.com", note["recipient"])
	assert.NotEmpty(t, note["notification_id"])
}
