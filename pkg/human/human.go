// Package human provides the human-interaction executor: abilities whose
// answers come from a person rather than code or a model. Askers may not
// have an answer yet; ErrAwaitingInput tells the orchestrator to suspend
// the run until one is supplied.
package human

import (
	"context"
	"errors"
	"fmt"

	"supportflow/pkg/logx"
	"supportflow/pkg/state"
)

// ErrAwaitingInput signals that no answer is available yet. The run
// suspends and can be resumed once an answer arrives.
var ErrAwaitingInput = errors.New("awaiting human input")

// Prompt is one question directed at a human collaborator.
type Prompt struct {
	RequestID string
	Ability   string
	Question  string
}

// Asker supplies human answers. Implementations may block (terminal input)
// or return ErrAwaitingInput when the answer has not arrived (suspend and
// resume).
type Asker interface {
	Ask(ctx context.Context, prompt Prompt) (string, error)
}

// Executor runs human-mode abilities by formulating a question from the
// request snapshot and handing it to the Asker.
type Executor struct {
	asker  Asker
	logger *logx.Logger
}

// NewExecutor creates a human executor over the given asker.
func NewExecutor(asker Asker) *Executor {
	return &Executor{
		asker:  asker,
		logger: logx.NewLogger("human"),
	}
}

// Execute runs one human-mode ability. The answer is stored under the
// ability's own field key. ErrAwaitingInput passes through untouched so the
// orchestrator can suspend.
func (e *Executor) Execute(ctx context.Context, ability string, snapshot state.Snapshot) (state.Result, error) {
	prompt := PromptFor(ability, snapshot)

	answer, err := e.asker.Ask(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrAwaitingInput) {
			return state.Result{}, err
		}
		return state.Result{}, fmt.Errorf("ability %s: %w", ability, err)
	}

	e.logger.Debug("ability %s answered for request %s", ability, snapshot.ID)
	return state.NewResult(ability, map[string]any{ability: answer}), nil
}

// PromptFor builds the prompt shown to the human for an ability. The
// orchestrator uses it to report the pending question when a run suspends.
func PromptFor(ability string, snapshot state.Snapshot) Prompt {
	return Prompt{
		RequestID: snapshot.ID,
		Ability:   ability,
		Question:  questionFor(ability, snapshot),
	}
}

// questionFor builds the question text shown to the human for an ability.
func questionFor(ability string, snapshot state.Snapshot) string {
	switch ability {
	case "clarify_question":
		return fmt.Sprintf(
			"Customer %s asked: %q\nWrite ONE concise clarification question for the customer.",
			snapshot.Intake.CustomerName, snapshot.Intake.Query)

	case "extract_answer":
		question := snapshot.StringField(state.KeyClarifyQuestion)
		if question == "" {
			question = "Could you provide more details about the issue?"
		}
		return fmt.Sprintf("Clarification question sent to the customer: %q\nEnter the customer's answer.", question)

	case "escalation_review":
		return fmt.Sprintf(
			"Request %s (ticket %d) escalated. Query: %q\nReview the payload and enter resolution instructions.",
			snapshot.ID, snapshot.Intake.TicketID, snapshot.Intake.Query)

	default:
		return fmt.Sprintf("Provide input for ability %s on request %s.", ability, snapshot.ID)
	}
}
