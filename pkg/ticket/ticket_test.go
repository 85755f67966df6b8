package ticket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := persistence.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db.DB())
}

func TestEnsureCreatesAndReuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Ensure(ctx, 101, "Ana", "ana@example.com", "high")
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	// Second Ensure keeps the existing row.
	id, err = store.Ensure(ctx, 101, "Someone Else", "", "low")
	require.NoError(t, err)
	assert.Equal(t, 101, id)

	got, err := store.Get(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.CustomerName)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, "high", got.Priority)
}

func TestEnsureAllocatesID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Ensure(context.Background(), 0, "Ana", "ana@example.com", "normal")
	require.NoError(t, err)
	assert.Greater(t, id, 0)
}

func TestUpdateFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Ensure(ctx, 0, "Ana", "ana@example.com", "normal")
	require.NoError(t, err)

	err = store.Update(ctx, id, map[string]any{
		"status":   "escalated",
		"notes":    "login failure, handed to tier 2",
		"internal": "not a column",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "escalated", got.Status)
	assert.Equal(t, "login failure, handed to tier 2", got.Notes)
}

func TestUpdateNoApplicableFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Ensure(ctx, 0, "Ana", "", "normal")
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, id, map[string]any{"bogus": true}))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "open", got.Status)
}

func TestUpdateMissingTicket(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), 999, map[string]any{"status": "closed"})
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCloseTicket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Ensure(ctx, 0, "Ana", "", "normal")
	require.NoError(t, err)

	require.NoError(t, store.CloseTicket(ctx, id))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)
}
