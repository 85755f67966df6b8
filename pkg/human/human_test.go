package human

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/state"
)

func testSnapshot() state.Snapshot {
	req := state.NewRequest(state.Intake{
		CustomerName: "Ana",
		Email:        "ana@example.com",
		Query:        "My app crashes when I try to log in",
		Priority:     "high",
		TicketID:     101,
	})
	return req.Snapshot()
}

func TestMailboxAwaitsThenAnswers(t *testing.T) {
	mailbox := NewMailbox()
	exec := NewExecutor(mailbox)
	snapshot := testSnapshot()

	_, err := exec.Execute(context.Background(), "extract_answer", snapshot)
	require.ErrorIs(t, err, ErrAwaitingInput)

	mailbox.Supply(snapshot.ID, "extract_answer", "Windows 11")

	result, err := exec.Execute(context.Background(), "extract_answer", snapshot)
	require.NoError(t, err)
	assert.Equal(t, "Windows 11", result.Updates["extract_answer"])

	// The answer is consumed.
	_, err = exec.Execute(context.Background(), "extract_answer", snapshot)
	require.ErrorIs(t, err, ErrAwaitingInput)
}

func TestMailboxKeysByRequestAndAbility(t *testing.T) {
	mailbox := NewMailbox()
	mailbox.Supply("other-request", "extract_answer", "wrong")

	_, err := mailbox.Ask(context.Background(), Prompt{RequestID: "this-request", Ability: "extract_answer"})
	assert.ErrorIs(t, err, ErrAwaitingInput)
}

func TestTerminalAskReadsLine(t *testing.T) {
	var out strings.Builder
	term := NewTerminal(strings.NewReader("  macOS 15  \n"), &out)

	answer, err := term.Ask(context.Background(), Prompt{
		Ability:  "extract_answer",
		Question: "Which OS?",
	})
	require.NoError(t, err)
	assert.Equal(t, "macOS 15", answer)
	assert.Contains(t, out.String(), "Which OS?")
}

func TestQuestionForExtractAnswerUsesClarifyQuestion(t *testing.T) {
	req := state.NewRequest(state.Intake{CustomerName: "Ana", Query: "crash"})
	req.Merge(state.NewResult("clarify_question", map[string]any{
		"clarify_question": "Which operating system are you on?",
	}))

	q := questionFor("extract_answer", req.Snapshot())
	assert.Contains(t, q, "Which operating system are you on?")
}

func TestQuestionForEscalationReviewNamesTicket(t *testing.T) {
	q := questionFor("escalation_review", testSnapshot())
	assert.Contains(t, q, "ticket 101")
	assert.Contains(t, q, "escalated")
}
