package ability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/config"
	"supportflow/pkg/kb"
	"supportflow/pkg/state"
)

func TestRegistryModes(t *testing.T) {
	reg := NewRegistry(config.Default())

	mode, err := reg.Mode("accept_payload")
	require.NoError(t, err)
	assert.Equal(t, config.ModeLocal, mode)

	mode, err = reg.Mode("clarify_question")
	require.NoError(t, err)
	assert.Equal(t, config.ModeHuman, mode)

	mode, err = reg.Mode("extract_entities")
	require.NoError(t, err)
	assert.Equal(t, config.ModeModel, mode)
}

func TestRegistryEscalationHandlerIsHuman(t *testing.T) {
	reg := NewRegistry(config.Default())

	mode, err := reg.Mode("escalation_review")
	require.NoError(t, err)
	assert.Equal(t, config.ModeHuman, mode)
}

func TestRegistryUnknownAbility(t *testing.T) {
	reg := NewRegistry(config.Default())

	_, err := reg.Mode("summon_dragon")
	assert.ErrorIs(t, err, ErrUnknownAbility)

	_, err = reg.Local("summon_dragon")
	assert.ErrorIs(t, err, ErrUnknownAbility)
}

func TestRegisterAllCoversDefaultLocalAbilities(t *testing.T) {
	pipeline := config.Default()
	reg := NewRegistry(pipeline)
	set := NewLocalSet(kb.NewMemorySearcher(nil), &fakeTickets{}, pipeline.Escalation.Threshold)
	set.RegisterAll(reg)

	for _, stage := range pipeline.Stages {
		for _, ab := range stage.Abilities {
			if ab.Mode != config.ModeLocal {
				continue
			}
			fn, err := reg.Local(ab.Name)
			require.NoError(t, err, "ability %s", ab.Name)

			snap := state.NewRequest(state.Intake{Query: "help"}).Snapshot()
			_, _ = fn(context.Background(), snap)
		}
	}
}
