package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/state"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)

	req := state.NewRequest(state.Intake{
		CustomerName: "Ana",
		Email:        "ana@example.com",
		Query:        "App crashes when I try to log in",
		Priority:     "high",
		TicketID:     101,
	})
	req.Merge(state.NewResult("clarify_question", map[string]any{
		state.KeyClarifyQuestion: "Which device are you using?",
	}))

	rec := &RunRecord{
		ID:      req.ID,
		Status:  "awaiting_human_input",
		Stage:   "CLARIFY",
		Ability: "extract_answer",
		Request: req,
	}
	require.NoError(t, store.SaveRun(rec))

	loaded, err := store.LoadRun(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_human_input", loaded.Status)
	assert.Equal(t, "CLARIFY", loaded.Stage)
	assert.Equal(t, "extract_answer", loaded.Ability)
	assert.Equal(t, "Ana", loaded.Request.Intake.CustomerName)
	assert.Equal(t, 101, loaded.Request.Intake.TicketID)
	assert.Equal(t, "Which device are you using?",
		loaded.Request.Snapshot().StringField(state.KeyClarifyQuestion))
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestSaveRunUpserts(t *testing.T) {
	store := openTestStore(t)

	req := state.NewRequest(state.Intake{CustomerName: "Ana", Query: "help"})
	rec := &RunRecord{ID: req.ID, Status: "running", Stage: "INTAKE", Request: req}
	require.NoError(t, store.SaveRun(rec))

	rec.Status = "awaiting_human_input"
	rec.Stage = "CLARIFY"
	require.NoError(t, store.SaveRun(rec))

	loaded, err := store.LoadRun(req.ID)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_human_input", loaded.Status)
	assert.Equal(t, "CLARIFY", loaded.Stage)
}

func TestLoadRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadRun("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestDeleteRun(t *testing.T) {
	store := openTestStore(t)

	req := state.NewRequest(state.Intake{CustomerName: "Ana", Query: "help"})
	require.NoError(t, store.SaveRun(&RunRecord{
		ID: req.ID, Status: "complete", Stage: "COMPLETE", Request: req,
	}))

	require.NoError(t, store.DeleteRun(req.ID))
	_, err := store.LoadRun(req.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListSuspended(t *testing.T) {
	store := openTestStore(t)

	for _, status := range []string{"awaiting_human_input", "running", "awaiting_human_input"} {
		req := state.NewRequest(state.Intake{CustomerName: "Ana", Query: "help"})
		require.NoError(t, store.SaveRun(&RunRecord{
			ID: req.ID, Status: status, Stage: "CLARIFY", Request: req,
		}))
	}

	suspended, err := store.ListSuspended("awaiting_human_input")
	require.NoError(t, err)
	assert.Len(t, suspended, 2)
	for _, rec := range suspended {
		assert.Equal(t, "awaiting_human_input", rec.Status)
	}
}
